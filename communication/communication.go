// Package communication holds the JSON bodies exchanged by the HTTP play API and its client.
package communication

import "guesser/engine"

type CreateGameRequest struct {
	Theme string `json:"theme"`
	// Version is optional; the latest snapshot is used when empty.
	Version string `json:"version,omitempty"`
}

// AnswerRequest carries an answer label ("Yes", "py", ...) as listed by game.AnswerLabels.
type AnswerRequest struct {
	Answer string `json:"answer"`
}

type VerdictRequest struct {
	Right bool `json:"right"`
}

// GameView is the server's view of one game.
type GameView struct {
	ID      string        `json:"id"`
	Theme   string        `json:"theme"`
	Version string        `json:"version"`
	Variant string        `json:"variant"`
	Prompt  engine.Prompt `json:"prompt"`
	Answers int           `json:"answers"`
	Guesses int           `json:"guesses"`
	CanUndo bool          `json:"can_undo"`
}

type ThemesResponse struct {
	Themes []string `json:"themes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
