package game

import "fmt"

// Variant selects how a session applies answers and derives its compute threshold.
type Variant int

const (
	// VariantStandard applies each answer on its own and uses the min/max midpoint.
	VariantStandard Variant = iota
	// VariantResumed applies pending answers as one batch and uses
	// 0.5*(1.5*max - 0.5*min - guessThreshold). Restored sessions always run as this variant.
	VariantResumed
)

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantResumed:
		return "resumed"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant accepts the names returned by String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "standard", "":
		return VariantStandard, nil
	case "resumed":
		return VariantResumed, nil
	}
	return 0, fmt.Errorf("unknown variant %q", s)
}

type Params struct {
	IterationLimit          int
	StartSelectiveIteration int
	StartGuessIteration     int
	GuessLimit              int

	InitialGuessThreshold float64
	EntityMultiplier      float64
	QuestionMultiplier    float64
	GuessThresholdMinimum float64
	LeaderDifference      float64

	Variant Variant
}

func DefaultParams() Params {
	return Params{
		IterationLimit:          24,
		StartSelectiveIteration: 7,
		StartGuessIteration:     5,
		GuessLimit:              7,
		InitialGuessThreshold:   0.5,
		EntityMultiplier:        0.85,
		QuestionMultiplier:      1.05,
		GuessThresholdMinimum:   0.5,
		LeaderDifference:        0.5,
		Variant:                 VariantStandard,
	}
}

type Option func(p *Params)

func WithIterationLimit(limit int) Option {
	return func(p *Params) {
		if limit > 0 {
			p.IterationLimit = limit
		}
	}
}

func WithGuessLimit(limit int) Option {
	return func(p *Params) {
		if limit > 0 {
			p.GuessLimit = limit
		}
	}
}

func WithStartGuessIteration(iteration int) Option {
	return func(p *Params) {
		if iteration >= 0 {
			p.StartGuessIteration = iteration
		}
	}
}

func WithStartSelectiveIteration(iteration int) Option {
	return func(p *Params) {
		if iteration >= 0 {
			p.StartSelectiveIteration = iteration
		}
	}
}

func WithGuessThresholdMinimum(minimum float64) Option {
	return func(p *Params) {
		if minimum > 0 {
			p.GuessThresholdMinimum = minimum
		}
	}
}

func WithVariant(v Variant) Option {
	return func(p *Params) {
		p.Variant = v
	}
}

func newParams(opts []Option) Params {
	p := DefaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
