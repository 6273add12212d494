// Package game runs one guessing session: it owns the session counters and rankings, feeds
// answers through the scoring rules into a private storage copy and decides what to do next.
package game

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"guesser/catalog"
	"guesser/failure"
	"guesser/scoring"
	"guesser/storage"
)

// GivenAnswer is what the user answered to a question.
type GivenAnswer struct {
	QuestionID int64   `msgpack:"question_id"`
	Value      float64 `msgpack:"value"`
}

// Session is a single game over a private copy of a theme. It is not safe for concurrent use.
type Session struct {
	id      uint64
	theme   string
	version catalog.Version
	params  Params
	gw      storage.Gateway

	state            State
	iteration        int
	guessCount       int
	guessThreshold   float64
	computeThreshold float64

	candidates []storage.Candidate
	questions  []int64
	answers    []GivenAnswer
	rejected   []int64
	asked      []int64

	// answers[:applied] are already reflected in the stored ratings.
	applied int
	stale   bool
}

// New allocates a session id and creates the private copy of theme at version (latest when
// version is zero).
func New(ctx context.Context, src storage.Source, ids Allocator, theme string, version catalog.Version, opts ...Option) (*Session, error) {
	id := ids.Next()
	gw, resolved, err := src.CreateSessionCopy(ctx, theme, version, id)
	if err != nil {
		return nil, fmt.Errorf("create session %d: %w", id, err)
	}
	s := newSession(id, theme, resolved, gw, newParams(opts))
	log.Info().Uint64("session", id).Str("theme", theme).Str("version", resolved.String()).
		Stringer("variant", s.params.Variant).Msg("session created")
	return s, nil
}

func newSession(id uint64, theme string, version catalog.Version, gw storage.Gateway, params Params) *Session {
	return &Session{
		id:             id,
		theme:          theme,
		version:        version,
		params:         params,
		gw:             gw,
		state:          AskQuestion,
		guessThreshold: params.InitialGuessThreshold,
	}
}

// ReceiveAnswer records the answer to questionID, writes its rating deltas and refreshes the
// rankings. An invalid value is rejected before anything changes. If the rating write fails the
// answer is dropped, so the same call can be retried; an error always means nothing was recorded.
// Once the write lands the answer stays recorded: a failed refresh leaves the rankings stale and
// the next read that needs them retries it.
func (s *Session) ReceiveAnswer(ctx context.Context, questionID int64, value float64) error {
	if !ValidAnswer(value) {
		return failure.InvalidAnswer(value).WithContext("question", questionID)
	}
	wasStale := s.stale
	s.answers = append(s.answers, GivenAnswer{QuestionID: questionID, Value: value})
	s.stale = true

	if err := s.applyPending(ctx); err != nil {
		if s.applied < len(s.answers) {
			s.answers = s.answers[:len(s.answers)-1]
			s.stale = wasStale
		}
		return err
	}
	if err := s.refresh(ctx); err != nil {
		log.Warn().Err(err).Uint64("session", s.id).Int64("question", questionID).
			Msg("answer recorded, ranking refresh deferred")
		return nil
	}
	log.Debug().Uint64("session", s.id).Int64("question", questionID).Str("answer", AnswerLabel(value)).
		Int("candidates", len(s.candidates)).Msg("answer received")
	return nil
}

// ReceiveGuess records the verdict on a guessed entity. A right guess wins the game; a wrong one
// excludes the entity for good.
func (s *Session) ReceiveGuess(ctx context.Context, entityID int64, isRight bool) error {
	if isRight {
		s.state = Victory
		log.Info().Uint64("session", s.id).Int64("entity", entityID).Int("iteration", s.iteration).Msg("guessed")
		return nil
	}
	if err := s.exclude(ctx, entityID); err != nil {
		return err
	}
	s.rejected = append(s.rejected, entityID)
	s.stale = true
	return nil
}

// ReceiveLastGuess ends the game: Victory if one of the last candidates was right, else GiveUp.
func (s *Session) ReceiveLastGuess(thereIsRight bool) {
	if thereIsRight {
		s.state = Victory
	} else {
		s.state = GiveUp
	}
	log.Info().Uint64("session", s.id).Stringer("state", s.state).Int("iteration", s.iteration).Msg("session finished")
}

func (s *Session) exclude(ctx context.Context, entityID int64) error {
	update := []storage.RatingUpdate{{EntityID: entityID, Rating: storage.ExclusionRating}}
	if err := s.gw.BatchUpdateRatings(ctx, update); err != nil {
		return fmt.Errorf("exclude entity %d: %w", entityID, err)
	}
	if err := s.gw.MarkUsed(ctx, storage.EntityKind, entityID); err != nil {
		return fmt.Errorf("exclude entity %d: %w", entityID, err)
	}
	return nil
}

// refresh applies pending answers and re-derives the compute threshold and candidate ranking.
// It is a no-op while the stats are fresh.
func (s *Session) refresh(ctx context.Context) error {
	if !s.stale {
		return nil
	}
	if len(s.answers) == 0 {
		s.candidates = nil
		s.stale = false
		return nil
	}
	if err := s.applyPending(ctx); err != nil {
		return err
	}

	maximum, minimum, ok, err := s.gw.MinMaxRating(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s.candidates = nil
		s.stale = false
		return nil
	}

	threshold := s.threshold(maximum, minimum)
	candidates, err := scoring.RankedCandidates(ctx, s.gw, threshold)
	if err != nil {
		return err
	}
	s.computeThreshold = threshold
	s.candidates = candidates
	s.stale = false
	return nil
}

func (s *Session) applyPending(ctx context.Context) error {
	if s.params.Variant == VariantResumed {
		pending := s.pendingAnswers()
		if len(pending) == 0 {
			return nil
		}
		if _, err := scoring.ApplyManyAnswers(ctx, s.gw, pending); err != nil {
			return err
		}
		s.applied = len(s.answers)
		return nil
	}

	for s.applied < len(s.answers) {
		floor := math.Inf(-1)
		if s.iteration > s.params.StartSelectiveIteration {
			floor = s.computeThreshold
		}
		a := s.answers[s.applied]
		last := storage.AnswerValue{QuestionID: a.QuestionID, Value: a.Value}
		if _, err := scoring.ApplySingleAnswer(ctx, s.gw, last, floor); err != nil {
			return err
		}
		s.applied++
	}
	return nil
}

func (s *Session) pendingAnswers() []storage.AnswerValue {
	pending := make([]storage.AnswerValue, 0, len(s.answers)-s.applied)
	for _, a := range s.answers[s.applied:] {
		pending = append(pending, storage.AnswerValue{QuestionID: a.QuestionID, Value: a.Value})
	}
	return pending
}

func (s *Session) threshold(maximum, minimum float64) float64 {
	if s.params.Variant == VariantResumed {
		return 0.5 * (1.5*maximum - 0.5*minimum - s.guessThreshold)
	}
	return minimum + (maximum-minimum)/2
}

// Close discards the private storage copy.
func (s *Session) Close() error {
	return s.gw.Close()
}

func (s *Session) ID() uint64                { return s.id }
func (s *Session) Theme() string             { return s.theme }
func (s *Session) Version() catalog.Version  { return s.version }
func (s *Session) Params() Params            { return s.params }
func (s *Session) State() State              { return s.state }
func (s *Session) Iteration() int            { return s.iteration }
func (s *Session) GuessCount() int           { return s.guessCount }
func (s *Session) GuessThreshold() float64   { return s.guessThreshold }
func (s *Session) ComputeThreshold() float64 { return s.computeThreshold }

// RemainingGuesses is how many candidates a last guess may present.
func (s *Session) RemainingGuesses() int {
	return max(s.params.GuessLimit-s.guessCount, 0)
}

// Candidates returns the current ranking, refreshing it first if needed.
func (s *Session) Candidates(ctx context.Context) ([]storage.Candidate, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return append([]storage.Candidate(nil), s.candidates...), nil
}

// Questions returns the ranking from the last ChooseQuestions call.
func (s *Session) Questions() []int64 {
	return append([]int64(nil), s.questions...)
}

func (s *Session) Answers() []GivenAnswer {
	return append([]GivenAnswer(nil), s.answers...)
}

func (s *Session) Rejected() []int64 {
	return append([]int64(nil), s.rejected...)
}

// EntityName and QuestionText resolve ids for presentation.
func (s *Session) EntityName(ctx context.Context, id int64) (string, error) {
	return s.gw.EntityName(ctx, id)
}

func (s *Session) QuestionText(ctx context.Context, id int64) (string, error) {
	return s.gw.QuestionText(ctx, id)
}
