// Package scoring holds the rating update rule of the guessing engine.
//
// RatingDelta and BatchedRatingDelta are pure. The Apply* helpers fetch the affected rows
// from a storage.Gateway, compute deltas and write the changed ratings back as one batch.
package scoring

import (
	"context"
	"fmt"

	"guesser/storage"
)

const (
	GoodAnswerWeight = 1.1
	BadAnswerWeight  = 0.8
	// NoAnswerConstant is the delta for an entity with no stored opinion (true value 0).
	NoAnswerConstant = -0.2
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RatingDelta scores a given answer against the stored one. Matching sign rewards closeness
// in magnitude, anything else penalises distance. A "don't know" (0) given against a
// nonzero stored value falls into the penalty branch.
func RatingDelta(trueValue, givenValue float64) float64 {
	if trueValue == 0.0 {
		return NoAnswerConstant
	}
	gap := abs(abs(trueValue) - abs(givenValue))
	if trueValue*givenValue > 0 {
		return (1.0 - gap) * GoodAnswerWeight
	}
	return (gap - 1.0) * BadAnswerWeight
}

// BatchedRatingDelta sums RatingDelta for every given answer that has a stored answer to the
// same question. Given answers without a match contribute nothing.
func BatchedRatingDelta(trueAnswers, givenAnswers []storage.AnswerValue) float64 {
	total := 0.0
	for _, given := range givenAnswers {
		for _, stored := range trueAnswers {
			if stored.QuestionID == given.QuestionID {
				total += RatingDelta(stored.Value, given.Value)
				break
			}
		}
	}
	return total
}

// ApplySingleAnswer updates every entity answering last.QuestionID whose current rating is at
// least floor. It returns the number of ratings written.
func ApplySingleAnswer(ctx context.Context, gw storage.Gateway, last storage.AnswerValue, floor float64) (int, error) {
	respondents, err := gw.EntitiesAnswering(ctx, last.QuestionID)
	if err != nil {
		return 0, fmt.Errorf("apply answer to question %d: %w", last.QuestionID, err)
	}

	updates := make([]storage.RatingUpdate, 0, len(respondents))
	for _, r := range respondents {
		if r.Rating < floor {
			continue
		}
		delta := RatingDelta(r.Value, last.Value)
		if delta == 0 {
			continue
		}
		updates = append(updates, storage.RatingUpdate{EntityID: r.EntityID, Rating: r.Rating + delta})
	}
	return write(ctx, gw, updates)
}

// ApplyManyAnswers scores every unused entity against all of given at once.
func ApplyManyAnswers(ctx context.Context, gw storage.Gateway, given []storage.AnswerValue) (int, error) {
	if len(given) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(given))
	for i, g := range given {
		ids[i] = g.QuestionID
	}
	profiles, err := gw.EntitiesAnsweringMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("apply %d answers: %w", len(given), err)
	}

	updates := make([]storage.RatingUpdate, 0, len(profiles))
	for _, p := range profiles {
		delta := BatchedRatingDelta(p.Answers, given)
		if delta == 0 {
			continue
		}
		updates = append(updates, storage.RatingUpdate{EntityID: p.EntityID, Rating: p.Rating + delta})
	}
	return write(ctx, gw, updates)
}

func write(ctx context.Context, gw storage.Gateway, updates []storage.RatingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if err := gw.BatchUpdateRatings(ctx, updates); err != nil {
		return 0, fmt.Errorf("write %d ratings: %w", len(updates), err)
	}
	return len(updates), nil
}

// RankedQuestions returns unused question ids ranked at threshold.
func RankedQuestions(ctx context.Context, gw storage.Gateway, threshold float64) ([]int64, error) {
	return gw.RankedQuestions(ctx, threshold)
}

// RankedCandidates returns unused entities with rating >= threshold, best first.
func RankedCandidates(ctx context.Context, gw storage.Gateway, threshold float64) ([]storage.Candidate, error) {
	return gw.RankedCandidates(ctx, threshold)
}
