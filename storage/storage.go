// Package storage defines what the guessing engine needs from persistence: a factory for
// private per-session copies of a theme snapshot (Source) and the ranked-query and
// batch-update operations over one such copy (Gateway).
package storage

import (
	"context"

	"guesser/catalog"
)

// ExclusionRating is the sentinel rating of a rejected entity. Rows are never deleted;
// anything at or below this value is out of the game for good.
const ExclusionRating = -10000.0

// Kind selects the table MarkUsed operates on.
type Kind int

const (
	EntityKind Kind = iota
	QuestionKind
)

func (k Kind) String() string {
	if k == QuestionKind {
		return "question"
	}
	return "entity"
}

// Candidate is an unused entity in the current ranking.
type Candidate struct {
	ID     int64
	Rating float64
}

// AnswerValue is a (question, value) pair, either stored ground truth or given by the user.
type AnswerValue struct {
	QuestionID int64
	Value      float64
}

// Respondent is an entity that has a stored answer to a given question.
type Respondent struct {
	EntityID int64
	Value    float64
	Rating   float64
}

// Profile is an unused entity with its stored answers restricted to a set of questions.
type Profile struct {
	EntityID int64
	Rating   float64
	Answers  []AnswerValue
}

// EntityState is the mutable part of one entity row.
type EntityState struct {
	ID     int64
	Rating float64
	Used   bool
}

// RatingUpdate is one row of a batched rating write.
type RatingUpdate struct {
	EntityID int64
	Rating   float64
}

// Gateway is a session-scoped view over entity, question and answer tables.
type Gateway interface {
	// RankedCandidates returns unused entities with rating >= threshold, highest rating first.
	RankedCandidates(ctx context.Context, threshold float64) ([]Candidate, error)
	// RankedQuestions returns unused question ids ranked by how many qualifying entities
	// (unused, rating >= threshold) answer them, most first.
	RankedQuestions(ctx context.Context, threshold float64) ([]int64, error)
	EntitiesAnswering(ctx context.Context, questionID int64) ([]Respondent, error)
	// EntitiesAnsweringMany is restricted to unused entities.
	EntitiesAnsweringMany(ctx context.Context, questionIDs []int64) ([]Profile, error)
	// BatchUpdateRatings writes all updates atomically.
	BatchUpdateRatings(ctx context.Context, updates []RatingUpdate) error
	MarkUsed(ctx context.Context, kind Kind, id int64) error
	// MinMaxRating covers unused entities above ExclusionRating; ok is false if there are none.
	MinMaxRating(ctx context.Context) (maximum, minimum float64, ok bool, err error)
	// EntityStates returns every entity's rating and used flag, ordered by id.
	EntityStates(ctx context.Context) ([]EntityState, error)
	EntityName(ctx context.Context, id int64) (string, error)
	QuestionText(ctx context.Context, id int64) (string, error)
	Close() error
}

// Source creates private session copies from versioned theme snapshots.
type Source interface {
	// CreateSessionCopy clones the snapshot of theme at version (latest when version is zero).
	// A missing theme or version is a configuration failure.
	CreateSessionCopy(ctx context.Context, theme string, version catalog.Version, sessionID uint64) (Gateway, catalog.Version, error)
	Themes(ctx context.Context) ([]string, error)
}
