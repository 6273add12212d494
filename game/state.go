package game

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"guesser/scoring"
	"guesser/storage"
)

// State is the lifecycle phase of a session.
type State int

const (
	AskQuestion State = iota
	MakeGuess
	MakeLastGuess
	GiveUp
	Victory
)

func (s State) String() string {
	switch s {
	case AskQuestion:
		return "ask_question"
	case MakeGuess:
		return "make_guess"
	case MakeLastGuess:
		return "make_last_guess"
	case GiveUp:
		return "give_up"
	case Victory:
		return "victory"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == GiveUp || s == Victory
}

// NextState decides the state for the coming turn. The iteration counter is incremented
// exactly once per call, whatever branch is taken.
func (s *Session) NextState(ctx context.Context) (State, error) {
	if err := s.refresh(ctx); err != nil {
		return s.state, err
	}

	prev := s.state
	next := s.state
	switch s.state {
	case AskQuestion:
		if err := s.ChooseQuestions(ctx); err != nil {
			return s.state, err
		}
		good, err := s.LeaderIsGood(ctx)
		if err != nil {
			return s.state, err
		}
		switch {
		case s.iteration > s.params.StartGuessIteration && good:
			next = MakeGuess
		case s.iteration >= s.params.IterationLimit || len(s.questions) == 0:
			next = GiveUp
		default:
			next = AskQuestion
		}

	case MakeGuess:
		if err := s.ChooseQuestions(ctx); err != nil {
			return s.state, err
		}
		outOfGuesses := s.guessCount >= s.params.GuessLimit
		switch {
		case len(s.questions) == 0 && outOfGuesses:
			next = GiveUp
		case len(s.questions) == 0:
			next = MakeLastGuess
		case s.params.Variant == VariantResumed && outOfGuesses:
			next = GiveUp
		default:
			s.guessThreshold = math.Max(s.guessThreshold*s.params.EntityMultiplier, s.params.GuessThresholdMinimum)
			next = AskQuestion
		}

	case MakeLastGuess:
		next = GiveUp
		if s.params.Variant == VariantResumed && s.guessCount < s.params.GuessLimit {
			next = MakeLastGuess
		}
	}

	s.state = next
	s.iteration++
	// Rankings are re-derived next turn; the applied-answer cursor keeps ratings from being
	// written twice.
	s.stale = true

	log.Debug().Uint64("session", s.id).Int("iteration", s.iteration).
		Stringer("from", prev).Stringer("to", next).
		Float64("guess_threshold", s.guessThreshold).Float64("compute_threshold", s.computeThreshold).
		Msg("next state")
	return next, nil
}

// Guess proposes the leader and marks it used. ok is false when no candidate remains.
func (s *Session) Guess(ctx context.Context) (storage.Candidate, bool, error) {
	if err := s.refresh(ctx); err != nil {
		return storage.Candidate{}, false, err
	}
	if len(s.candidates) == 0 {
		return storage.Candidate{}, false, nil
	}
	leader := s.candidates[0]
	if err := s.gw.MarkUsed(ctx, storage.EntityKind, leader.ID); err != nil {
		return storage.Candidate{}, false, err
	}
	s.candidates = s.candidates[1:]
	s.guessCount++
	return leader, true, nil
}

// LastGuess returns every remaining candidate without marking any of them. Callers show at
// most RemainingGuesses of them.
func (s *Session) LastGuess(ctx context.Context) ([]storage.Candidate, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return append([]storage.Candidate(nil), s.candidates...), nil
}

// AskQuestion returns the best remaining question and marks it used. ok is false when no
// question remains.
func (s *Session) AskQuestion(ctx context.Context) (int64, bool, error) {
	if len(s.questions) == 0 {
		return 0, false, nil
	}
	id := s.questions[0]
	if err := s.gw.MarkUsed(ctx, storage.QuestionKind, id); err != nil {
		return 0, false, err
	}
	s.questions = s.questions[1:]
	s.asked = append(s.asked, id)
	return id, true, nil
}

// ChooseQuestions refreshes stale stats, raises the guess threshold and re-ranks the unused
// questions at the compute threshold.
func (s *Session) ChooseQuestions(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	questions, err := scoring.RankedQuestions(ctx, s.gw, s.computeThreshold)
	if err != nil {
		return err
	}
	if s.params.Variant == VariantResumed {
		s.guessThreshold *= math.Pow(s.params.QuestionMultiplier, float64(s.iteration))
	} else {
		s.guessThreshold *= s.params.QuestionMultiplier
	}
	s.questions = questions
	return nil
}

// LeaderIsGood reports whether the leader is far enough ahead of the runner-up to guess.
func (s *Session) LeaderIsGood(ctx context.Context) (bool, error) {
	if err := s.refresh(ctx); err != nil {
		return false, err
	}
	switch len(s.candidates) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	gap := s.candidates[0].Rating - s.candidates[1].Rating
	return gap >= s.guessThreshold*s.params.LeaderDifference, nil
}
