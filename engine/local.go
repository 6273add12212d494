package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"guesser/experiments/metrics"
	"guesser/game"
	"guesser/player"
	"guesser/storage"
)

type Option func(g *Game)

func WithCollector(c metrics.Collector) Option {
	return func(g *Game) {
		if c != nil {
			g.metrics = c
		}
	}
}

// Game drives a local session.
type Game struct {
	session *game.Session
	prompt  Prompt
	metrics metrics.Collector

	result metrics.GameMetric
	turns  []metrics.TurnMetric

	// recorded is set once the user's reply to the current prompt reached the session but the
	// next turn is still undecided. A retry then only decides the turn.
	recorded bool
}

func NewGame(s *game.Session, opts ...Option) *Game {
	g := &Game{
		session: s,
		metrics: metrics.NewDummyCollector(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resume continues a restored session that was showing prompt.
func Resume(s *game.Session, prompt Prompt, opts ...Option) *Game {
	g := NewGame(s, opts...)
	g.prompt = prompt
	return g
}

func (g *Game) Session() *game.Session { return g.session }
func (g *Game) Prompt() Prompt          { return g.prompt }

// Metrics returns what the collector recorded once the game is finished.
func (g *Game) Metrics() (metrics.GameMetric, []metrics.TurnMetric) {
	return g.result, g.turns
}

// Start decides the first turn.
func (g *Game) Start(ctx context.Context) (Prompt, error) {
	g.metrics.Start(g.session.ID(), g.session.Theme())
	return g.advance(ctx)
}

// Answer answers the pending question. If an earlier call recorded the answer but failed to
// decide the next turn, value is ignored and only the turn is decided.
func (g *Game) Answer(ctx context.Context, value float64) (Prompt, error) {
	if g.prompt.Kind == KindFinished {
		return g.prompt, ErrFinished
	}
	if g.prompt.Kind != KindQuestion {
		return g.prompt, ErrNoQuestionPending
	}
	if !g.recorded {
		if err := g.session.ReceiveAnswer(ctx, g.prompt.QuestionID, value); err != nil {
			return g.prompt, err
		}
		g.recorded = true
	}
	return g.advance(ctx)
}

// Verdict tells whether the pending guess (or any of the last candidates) is right.
func (g *Game) Verdict(ctx context.Context, right bool) (Prompt, error) {
	switch g.prompt.Kind {
	case KindGuess:
		if !g.recorded {
			if err := g.session.ReceiveGuess(ctx, g.prompt.Guess.ID, right); err != nil {
				return g.prompt, err
			}
			g.recorded = true
		}
		if g.session.State() == game.Victory {
			return g.finish(), nil
		}
		return g.advance(ctx)
	case KindLastGuess:
		g.session.ReceiveLastGuess(right)
		return g.finish(), nil
	case KindFinished:
		return g.prompt, ErrFinished
	default:
		return g.prompt, ErrNoGuessPending
	}
}

func (g *Game) advance(ctx context.Context) (Prompt, error) {
	prompt, err := g.decide(ctx)
	if err == nil {
		g.recorded = false
	}
	return prompt, err
}

func (g *Game) decide(ctx context.Context) (Prompt, error) {
	s := g.session
	state, err := s.NextState(ctx)
	if err != nil {
		return g.prompt, err
	}
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return g.prompt, err
	}
	g.metrics.Turn(state, s.Iteration(), len(candidates), s.GuessThreshold(), s.ComputeThreshold())

	switch state {
	case game.AskQuestion:
		return g.askQuestion(ctx)
	case game.MakeGuess:
		return g.guess(ctx)
	case game.MakeLastGuess:
		if s.Params().Variant == game.VariantResumed {
			return g.guess(ctx)
		}
		return g.lastGuess(ctx)
	default:
		return g.finish(), nil
	}
}

func (g *Game) askQuestion(ctx context.Context) (Prompt, error) {
	id, ok, err := g.session.AskQuestion(ctx)
	if err != nil {
		return g.prompt, err
	}
	if !ok {
		g.session.ReceiveLastGuess(false)
		return g.finish(), nil
	}
	text, err := g.session.QuestionText(ctx, id)
	if err != nil {
		return g.prompt, err
	}
	g.prompt = g.newPrompt(KindQuestion)
	g.prompt.QuestionID = id
	g.prompt.Question = text
	return g.prompt, nil
}

func (g *Game) guess(ctx context.Context) (Prompt, error) {
	candidate, ok, err := g.session.Guess(ctx)
	if err != nil {
		return g.prompt, err
	}
	if !ok {
		g.session.ReceiveLastGuess(false)
		return g.finish(), nil
	}
	named, err := g.name(ctx, candidate)
	if err != nil {
		return g.prompt, err
	}
	g.prompt = g.newPrompt(KindGuess)
	g.prompt.Guess = &named
	return g.prompt, nil
}

func (g *Game) lastGuess(ctx context.Context) (Prompt, error) {
	candidates, err := g.session.LastGuess(ctx)
	if err != nil {
		return g.prompt, err
	}
	if remaining := g.session.RemainingGuesses(); len(candidates) > remaining {
		candidates = candidates[:remaining]
	}
	if len(candidates) == 0 {
		g.session.ReceiveLastGuess(false)
		return g.finish(), nil
	}

	g.prompt = g.newPrompt(KindLastGuess)
	g.prompt.Remaining = g.session.RemainingGuesses()
	for _, c := range candidates {
		named, err := g.name(ctx, c)
		if err != nil {
			return g.prompt, err
		}
		g.prompt.Candidates = append(g.prompt.Candidates, named)
	}
	return g.prompt, nil
}

func (g *Game) name(ctx context.Context, c storage.Candidate) (Guess, error) {
	name, err := g.session.EntityName(ctx, c.ID)
	if err != nil {
		return Guess{}, fmt.Errorf("name candidate %d: %w", c.ID, err)
	}
	return Guess{ID: c.ID, Name: name, Rating: c.Rating}, nil
}

func (g *Game) finish() Prompt {
	s := g.session
	g.recorded = false
	g.prompt = g.newPrompt(KindFinished)
	g.result, g.turns = g.metrics.Complete(s.State(), len(s.Answers()), s.GuessCount())
	log.Info().Uint64("session", s.ID()).Stringer("outcome", s.State()).
		Int("iteration", s.Iteration()).Int("guesses", s.GuessCount()).Msg("game over")
	return g.prompt
}

func (g *Game) newPrompt(kind PromptKind) Prompt {
	return Prompt{Kind: kind, State: g.session.State().String(), Iteration: g.session.Iteration()}
}

// Run plays d to the end with p answering.
func Run(ctx context.Context, d Driver, p player.Player) (Prompt, error) {
	prompt, err := d.Start(ctx)
	if err != nil {
		return prompt, err
	}

	for turn := 1; !prompt.Finished(); turn++ {
		if turn > MaxTurns {
			return prompt, fmt.Errorf("stopped after %d turns", MaxTurns)
		}
		switch prompt.Kind {
		case KindQuestion:
			value, err := p.Answer(ctx, prompt.Question, prompt.QuestionID)
			if err != nil {
				return prompt, err
			}
			prompt, err = d.Answer(ctx, value)
			if err != nil {
				return prompt, err
			}
		case KindGuess:
			right, err := p.ConfirmGuess(ctx, prompt.Guess.Name, prompt.Guess.ID)
			if err != nil {
				return prompt, err
			}
			prompt, err = d.Verdict(ctx, right)
			if err != nil {
				return prompt, err
			}
		case KindLastGuess:
			names := make([]string, len(prompt.Candidates))
			ids := make([]int64, len(prompt.Candidates))
			for i, c := range prompt.Candidates {
				names[i], ids[i] = c.Name, c.ID
			}
			right, err := p.ConfirmAny(ctx, names, ids)
			if err != nil {
				return prompt, err
			}
			prompt, err = d.Verdict(ctx, right)
			if err != nil {
				return prompt, err
			}
		default:
			return prompt, fmt.Errorf("unexpected prompt kind %q", prompt.Kind)
		}
	}
	return prompt, nil
}
