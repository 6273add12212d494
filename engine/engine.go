// Package engine turns session states into prompts for whoever plays, and feeds their replies
// back into the session.
package engine

import (
	"context"
	"errors"

	"guesser/game"
)

// MaxTurns bounds Run even if a session never reaches a terminal state.
const MaxTurns = 1000

var (
	ErrNoQuestionPending = errors.New("no question is waiting for an answer")
	ErrNoGuessPending    = errors.New("no guess is waiting for a verdict")
	ErrFinished          = errors.New("game is already finished")
)

type PromptKind string

const (
	KindQuestion  PromptKind = "question"
	KindGuess     PromptKind = "guess"
	KindLastGuess PromptKind = "last_guess"
	KindFinished  PromptKind = "finished"
)

// Guess is a proposed entity.
type Guess struct {
	ID     int64   `json:"id" msgpack:"id"`
	Name   string  `json:"name" msgpack:"name"`
	Rating float64 `json:"rating" msgpack:"rating"`
}

// Prompt is what the player has to respond to next.
type Prompt struct {
	Kind       PromptKind `json:"kind" msgpack:"kind"`
	State      string     `json:"state" msgpack:"state"`
	Iteration  int        `json:"iteration" msgpack:"iteration"`
	QuestionID int64      `json:"question_id,omitempty" msgpack:"question_id"`
	Question   string     `json:"question,omitempty" msgpack:"question"`
	Guess      *Guess     `json:"guess,omitempty" msgpack:"guess"`
	Candidates []Guess    `json:"candidates,omitempty" msgpack:"candidates"`
	// Remaining is how many guesses are left; set for last guesses.
	Remaining int `json:"remaining,omitempty" msgpack:"remaining"`
}

// Finished reports whether the prompt ends the game.
func (p Prompt) Finished() bool {
	return p.Kind == KindFinished
}

// Victory reports whether the game ended with the entity found.
func (p Prompt) Victory() bool {
	return p.Kind == KindFinished && p.State == game.Victory.String()
}

// Driver runs one game. Game implements it locally, the HTTP client remotely.
type Driver interface {
	Start(ctx context.Context) (Prompt, error)
	Answer(ctx context.Context, value float64) (Prompt, error)
	Verdict(ctx context.Context, right bool) (Prompt, error)
}
