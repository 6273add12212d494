package player

import (
	"context"

	"guesser/utils"
)

// Oracle plays a known entity: it answers from the entity's stored profile and confirms only
// guesses of that entity. Questions missing from the profile get "I do not know".
type Oracle struct {
	target  int64
	profile map[int64]float64
}

func NewOracle(target int64, profile map[int64]float64) *Oracle {
	return &Oracle{target: target, profile: profile}
}

func (o *Oracle) Target() int64 {
	return o.target
}

// Answer snaps the stored value to the closest accepted answer.
func (o *Oracle) Answer(ctx context.Context, question string, id int64) (float64, error) {
	value, ok := o.profile[id]
	if !ok {
		return 0, nil
	}
	return snap(value), nil
}

func (o *Oracle) ConfirmGuess(ctx context.Context, name string, id int64) (bool, error) {
	return id == o.target, nil
}

func (o *Oracle) ConfirmAny(ctx context.Context, names []string, ids []int64) (bool, error) {
	return utils.FindIndex(ids, o.target) >= 0, nil
}

func snap(value float64) float64 {
	value = utils.Clamp(value, -1, 1)
	switch {
	case value >= 0.75:
		return 1
	case value >= 0.25:
		return 0.5
	case value > -0.25:
		return 0
	case value > -0.75:
		return -0.5
	default:
		return -1
	}
}
