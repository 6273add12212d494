package game

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"guesser/catalog"
	"guesser/failure"
	"guesser/storage"
	"guesser/storage/memory"
)

// buildTheme makes a theme whose entities answer questions q1..qN with the given values.
func buildTheme(questions int, profiles map[string][]float64) catalog.Theme {
	theme := catalog.Theme{Name: "test", Version: catalog.MustParseVersion("1.0")}
	for i := 1; i <= questions; i++ {
		key := fmt.Sprintf("q%d", i)
		theme.Questions = append(theme.Questions, catalog.Question{Key: key, Text: "Question " + key + "?"})
	}
	for _, name := range []string{"A", "B", "C", "D"} {
		values, ok := profiles[name]
		if !ok {
			continue
		}
		entity := catalog.Entity{Name: name, Popularity: 1, Answers: map[string]float64{}}
		for i, v := range values {
			entity.Answers[fmt.Sprintf("q%d", i+1)] = v
		}
		theme.Entities = append(theme.Entities, entity)
	}
	return theme
}

func repeat(v float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}

func newTestSession(t *testing.T, theme catalog.Theme, opts ...Option) *Session {
	t.Helper()
	src, err := memory.NewSource(theme)
	require.NoError(t, err)
	s, err := New(context.Background(), src, NewSequentialAllocator(0), theme.Name, catalog.Version{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// play answers every question from profile (question id -> value) until the session leaves
// AskQuestion. It returns the iteration at which the last transition was decided.
func play(t *testing.T, s *Session, profile map[int64]float64) int {
	t.Helper()
	ctx := context.Background()
	for {
		decidedAt := s.Iteration()
		state, err := s.NextState(ctx)
		require.NoError(t, err)
		if state != AskQuestion {
			return decidedAt
		}
		id, ok, err := s.AskQuestion(ctx)
		require.NoError(t, err)
		require.True(t, ok, "AskQuestion state without questions")
		require.NoError(t, s.ReceiveAnswer(ctx, id, profile[id]))
	}
}

func TestLeaderIsGood(t *testing.T) {
	ctx := context.Background()
	s := newSession(1, "test", catalog.Version{}, nil, DefaultParams())

	tests := []struct {
		name       string
		candidates []storage.Candidate
		want       bool
	}{
		{"no candidates", nil, false},
		{"single candidate", []storage.Candidate{{ID: 1, Rating: -3}}, true},
		{"clear leader", []storage.Candidate{{ID: 1, Rating: 3}, {ID: 2, Rating: 2}}, true},
		{"exact gap", []storage.Candidate{{ID: 1, Rating: 1.25}, {ID: 2, Rating: 1}}, true},
		{"tie", []storage.Candidate{{ID: 1, Rating: 2}, {ID: 2, Rating: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.candidates = tt.candidates
			got, err := s.LeaderIsGood(ctx)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGiveUpAtIterationLimit(t *testing.T) {
	// Two entities with identical profiles never separate.
	theme := buildTheme(30, map[string][]float64{"A": repeat(1, 30), "B": repeat(1, 30)})
	s := newTestSession(t, theme)

	decidedAt := play(t, s, map[int64]float64{})
	require.Equal(t, GiveUp, s.State())
	require.Equal(t, 24, decidedAt, "gives up exactly at the iteration limit")
	require.Equal(t, 25, s.Iteration())
	require.Len(t, s.Answers(), 24)
}

func TestGiveUpWhenQuestionsRunOut(t *testing.T) {
	theme := buildTheme(3, map[string][]float64{"A": repeat(1, 3), "B": repeat(1, 3)})
	s := newTestSession(t, theme)

	decidedAt := play(t, s, map[int64]float64{1: 1, 2: 1, 3: 1})
	require.Equal(t, GiveUp, s.State())
	require.Equal(t, 3, decidedAt)
}

func TestGuessThresholdDecay(t *testing.T) {
	ctx := context.Background()
	// Entity i says yes to question i only, so each yes leaves one clear leader and every
	// cycle is one question followed by one wrong guess.
	const n = 8
	theme := catalog.Theme{Name: "test", Version: catalog.MustParseVersion("1.0")}
	for i := 1; i <= n; i++ {
		theme.Questions = append(theme.Questions, catalog.Question{Key: fmt.Sprintf("q%d", i), Text: "?"})
	}
	for i := 1; i <= n; i++ {
		entity := catalog.Entity{Name: fmt.Sprintf("E%d", i), Popularity: 1, Answers: map[string]float64{}}
		for j := 1; j <= n; j++ {
			value := -1.0
			if i == j {
				value = 1
			}
			entity.Answers[fmt.Sprintf("q%d", j)] = value
		}
		theme.Entities = append(theme.Entities, entity)
	}
	s := newTestSession(t, theme, WithStartGuessIteration(0), WithStartSelectiveIteration(100), WithGuessThresholdMinimum(0.8))
	s.guessThreshold = 1.0

	// Threshold each time a wrong guess hands the game back to questions.
	var afterGuess []float64
	previous := AskQuestion
	for step := 0; step < 4*n; step++ {
		state, err := s.NextState(ctx)
		require.NoError(t, err)
		if step > 0 {
			require.NotEqual(t, previous, state, "step %d", step)
		}

		switch state {
		case AskQuestion:
			if previous == MakeGuess {
				afterGuess = append(afterGuess, s.GuessThreshold())
			}
			id, ok, err := s.AskQuestion(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, s.ReceiveAnswer(ctx, id, AnswerYes))
		case MakeGuess:
			guess, ok, err := s.Guess(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, s.ReceiveGuess(ctx, guess.ID, false))
		}
		previous = state
		if state.Terminal() || state == MakeLastGuess {
			break
		}
	}

	require.Len(t, afterGuess, n-1)
	require.InDelta(t, 1.05*1.05*1.05*0.85, afterGuess[0], 1e-12)
	for i, threshold := range afterGuess {
		require.GreaterOrEqual(t, threshold, 0.8, "cycle %d", i)
		if i > 0 {
			require.Less(t, threshold, afterGuess[i-1]+1e-12, "cycle %d", i)
		}
	}
	require.Equal(t, 0.8, afterGuess[len(afterGuess)-1])
}

func TestThreeEntityScenario(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(8, map[string][]float64{
		"A": repeat(1, 8),
		"B": {1, 1, 1, 1, -1, -1, -1, -1},
		"C": repeat(-1, 8),
	})
	s := newTestSession(t, theme)

	profile := map[int64]float64{}
	for i := int64(1); i <= 8; i++ {
		profile[i] = 1
	}
	decidedAt := play(t, s, profile)
	require.Equal(t, MakeGuess, s.State())
	require.LessOrEqual(t, decidedAt, s.Params().StartGuessIteration+1)

	good, err := s.LeaderIsGood(ctx)
	require.NoError(t, err)
	require.True(t, good)

	guess, ok, err := s.Guess(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	name, err := s.EntityName(ctx, guess.ID)
	require.NoError(t, err)
	require.Equal(t, "A", name)
	require.Equal(t, 1, s.GuessCount())

	require.NoError(t, s.ReceiveGuess(ctx, guess.ID, true))
	require.Equal(t, Victory, s.State())
}

func TestWrongGuessOnLastCandidate(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(6, map[string][]float64{"A": repeat(1, 6)})
	profile := map[int64]float64{1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}

	run := func(t *testing.T, opts ...Option) *Session {
		s := newTestSession(t, theme, opts...)
		play(t, s, profile)
		require.Equal(t, MakeGuess, s.State())

		guess, ok, err := s.Guess(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, s.ReceiveGuess(ctx, guess.ID, false))
		require.Equal(t, []int64{guess.ID}, s.Rejected())

		_, err = s.NextState(ctx)
		require.NoError(t, err)
		return s
	}

	t.Run("guess limit reached", func(t *testing.T) {
		s := run(t, WithGuessLimit(1))
		require.Equal(t, GiveUp, s.State())
	})

	t.Run("guesses left", func(t *testing.T) {
		s := run(t)
		require.Equal(t, MakeLastGuess, s.State())

		candidates, err := s.LastGuess(ctx)
		require.NoError(t, err)
		require.Empty(t, candidates, "the rejected entity never comes back")

		_, err = s.NextState(ctx)
		require.NoError(t, err)
		require.Equal(t, GiveUp, s.State())
	})
}

func TestMakeLastGuessVariants(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(2, map[string][]float64{"A": repeat(1, 2), "B": repeat(-1, 2)})

	t.Run("standard gives up", func(t *testing.T) {
		s := newTestSession(t, theme)
		s.state = MakeLastGuess
		state, err := s.NextState(ctx)
		require.NoError(t, err)
		require.Equal(t, GiveUp, state)
	})

	t.Run("resumed keeps guessing while guesses are left", func(t *testing.T) {
		s := newTestSession(t, theme, WithVariant(VariantResumed), WithGuessLimit(2))
		s.state = MakeLastGuess
		s.guessCount = 1
		state, err := s.NextState(ctx)
		require.NoError(t, err)
		require.Equal(t, MakeLastGuess, state)

		s.guessCount = 2
		state, err = s.NextState(ctx)
		require.NoError(t, err)
		require.Equal(t, GiveUp, state)
	})
}

func TestTerminalStates(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(2, map[string][]float64{"A": repeat(1, 2)})
	for _, terminal := range []State{Victory, GiveUp} {
		t.Run(terminal.String(), func(t *testing.T) {
			s := newTestSession(t, theme)
			s.state = terminal
			state, err := s.NextState(ctx)
			require.NoError(t, err)
			require.Equal(t, terminal, state)
			require.Equal(t, 1, s.Iteration())
		})
	}

	s := newTestSession(t, theme)
	s.ReceiveLastGuess(true)
	require.Equal(t, Victory, s.State())
	s.ReceiveLastGuess(false)
	require.Equal(t, GiveUp, s.State())
}

func TestReceiveAnswer(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(3, map[string][]float64{"A": repeat(1, 3), "B": repeat(-1, 3)})

	t.Run("invalid value", func(t *testing.T) {
		s := newTestSession(t, theme)
		err := s.ReceiveAnswer(ctx, 1, 0.3)
		require.True(t, failure.Is(err, failure.KindInvalidAnswer))
		require.Empty(t, s.Answers())
	})

	t.Run("don't know still moves ratings", func(t *testing.T) {
		s := newTestSession(t, theme)
		require.NoError(t, s.ReceiveAnswer(ctx, 1, AnswerDontKnow))
		candidates, err := s.Candidates(ctx)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
	})

	t.Run("answers are applied once", func(t *testing.T) {
		s := newTestSession(t, theme)
		require.NoError(t, s.ReceiveAnswer(ctx, 1, AnswerYes))
		before, err := s.Candidates(ctx)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := s.NextState(ctx)
			require.NoError(t, err)
		}
		after, err := s.Candidates(ctx)
		require.NoError(t, err)
		require.Equal(t, before, after)
		require.InDelta(t, 0.5+1.1, after[0].Rating, 1e-12)
	})

	t.Run("storage failure can be retried", func(t *testing.T) {
		s := newTestSession(t, theme)
		flaky := &flakyGateway{Gateway: s.gw, failures: 1}
		s.gw = flaky

		err := s.ReceiveAnswer(ctx, 1, AnswerYes)
		require.True(t, failure.Is(err, failure.KindStorage))
		require.Empty(t, s.Answers(), "failed answer leaves no trace")

		require.NoError(t, s.ReceiveAnswer(ctx, 1, AnswerYes))
		require.Len(t, s.Answers(), 1)
		candidates, err := s.Candidates(ctx)
		require.NoError(t, err)
		require.InDelta(t, 0.5+1.1, candidates[0].Rating, 1e-12)
	})

	t.Run("ranking failure inside the answer keeps it recorded", func(t *testing.T) {
		s := newTestSession(t, theme)
		s.gw = &flakyGateway{Gateway: s.gw, minMaxFailures: 1}

		require.NoError(t, s.ReceiveAnswer(ctx, 1, AnswerYes))
		require.Len(t, s.Answers(), 1)
		candidates, err := s.Candidates(ctx)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		require.Equal(t, int64(1), candidates[0].ID)
		require.InDelta(t, 0.5+1.1, candidates[0].Rating, 1e-12)
	})

	t.Run("ranking failure after the write applies the answer once", func(t *testing.T) {
		s := newTestSession(t, theme)
		s.gw = &flakyGateway{Gateway: s.gw, minMaxFailures: 2}

		// The write lands and the failed refresh is left for the next read.
		require.NoError(t, s.ReceiveAnswer(ctx, 1, AnswerYes))
		require.Len(t, s.Answers(), 1)

		_, err := s.NextState(ctx)
		require.True(t, failure.Is(err, failure.KindStorage))
		require.Len(t, s.Answers(), 1)
		require.Equal(t, 0, s.Iteration())

		state, err := s.NextState(ctx)
		require.NoError(t, err)
		require.Equal(t, AskQuestion, state)
		candidates, err := s.Candidates(ctx)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		require.InDelta(t, 0.5+1.1, candidates[0].Rating, 1e-12)
	})
}

type flakyGateway struct {
	storage.Gateway
	failures       int
	minMaxFailures int
}

func (g *flakyGateway) MinMaxRating(ctx context.Context) (float64, float64, bool, error) {
	if g.minMaxFailures > 0 {
		g.minMaxFailures--
		return 0, 0, false, failure.Storage("min max rating", "SELECT MAX(rating)", errors.New("database is locked"))
	}
	return g.Gateway.MinMaxRating(ctx)
}

func (g *flakyGateway) BatchUpdateRatings(ctx context.Context, updates []storage.RatingUpdate) error {
	if g.failures > 0 {
		g.failures--
		return failure.Storage("batch update ratings", "UPDATE entities", errors.New("database is locked"))
	}
	return g.Gateway.BatchUpdateRatings(ctx, updates)
}

func TestReceiveGuessStorageFailure(t *testing.T) {
	ctx := context.Background()
	theme := buildTheme(2, map[string][]float64{"A": repeat(1, 2), "B": repeat(-1, 2)})
	s := newTestSession(t, theme)
	s.gw = &flakyGateway{Gateway: s.gw, failures: 1}

	err := s.ReceiveGuess(ctx, 1, false)
	require.True(t, failure.Is(err, failure.KindStorage))
	require.Empty(t, s.Rejected())

	require.NoError(t, s.ReceiveGuess(ctx, 1, false))
	require.Equal(t, []int64{1}, s.Rejected())
}
