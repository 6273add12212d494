// Package server exposes guessing sessions over HTTP. Each game lives in an in-process
// registry keyed by a UUID and is driven one request at a time.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"guesser/communication"
	"guesser/engine"
	"guesser/experiments/metrics"
	"guesser/game"
	"guesser/storage"
)

const DefaultIdleTimeout = 30 * time.Minute

var (
	errGameNotFound  = errors.New("game not found")
	errNothingToUndo = errors.New("nothing to undo")
)

type Option func(s *Server)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithAllocator(ids game.Allocator) Option {
	return func(s *Server) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithGameOptions sets the tuning every new or restored session gets.
func WithGameOptions(opts ...game.Option) Option {
	return func(s *Server) {
		s.options = append(s.options, opts...)
	}
}

// WithIdleTimeout sets how long a game may go untouched before Sweep drops it.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

type Server struct {
	echo        *echo.Echo
	source      storage.Source
	ids         game.Allocator
	options     []game.Option
	clock       clockwork.Clock
	idleTimeout time.Duration

	mu    sync.Mutex
	games map[uuid.UUID]*entry
}

// entry is one registered game. Its mutex serializes turns; the registry lock is never held
// while a turn runs.
type entry struct {
	mu       sync.Mutex
	id       uuid.UUID
	game     *engine.Game
	undo     *checkpoint
	lastSeen time.Time
	finished bool
	closed   bool
}

// checkpoint is the game as it was before the last successful turn.
type checkpoint struct {
	snapshot []byte
	prompt   engine.Prompt
}

func New(src storage.Source, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		source:      src,
		ids:         game.NewSequentialAllocator(game.DefaultMaxSessionID),
		clock:       clockwork.NewRealClock(),
		idleTimeout: DefaultIdleTimeout,
		games:       make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("starting server")
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and closes every registered game.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)

	s.mu.Lock()
	games := s.games
	s.games = make(map[uuid.UUID]*entry)
	s.mu.Unlock()

	for _, e := range games {
		s.discard(e)
	}
	return err
}

// Sweep drops games idle for longer than the idle timeout and returns how many went.
func (s *Server) Sweep() int {
	now := s.clock.Now()
	var idle []*entry

	s.mu.Lock()
	for id, e := range s.games {
		// A game that is mid-turn is not idle.
		if !e.mu.TryLock() {
			continue
		}
		if now.Sub(e.lastSeen) > s.idleTimeout {
			idle = append(idle, e)
			delete(s.games, id)
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	for _, e := range idle {
		s.discard(e)
	}
	if len(idle) > 0 {
		log.Info().Int("games", len(idle)).Msg("dropped idle games")
	}
	return len(idle)
}

// RunJanitor sweeps idle games until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

func (s *Server) register(g *engine.Game) *entry {
	e := &entry{id: uuid.New(), game: g, lastSeen: s.clock.Now()}
	s.mu.Lock()
	s.games[e.id] = e
	s.mu.Unlock()
	metrics.ActiveGames.Inc()
	return e
}

// lookup returns the locked entry for the :id path parameter. The caller unlocks it.
func (s *Server) lookup(c echo.Context) (*entry, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, errGameNotFound
	}
	s.mu.Lock()
	e, ok := s.games[id]
	s.mu.Unlock()
	if !ok {
		return nil, errGameNotFound
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errGameNotFound
	}
	e.lastSeen = s.clock.Now()
	return e, nil
}

func (s *Server) remove(e *entry) {
	s.mu.Lock()
	delete(s.games, e.id)
	s.mu.Unlock()
}

// discard closes an entry that is no longer registered.
func (s *Server) discard(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if !e.finished {
		metrics.ActiveGames.Dec()
	}
	if err := e.game.Session().Close(); err != nil {
		log.Warn().Err(err).Str("game", e.id.String()).Msg("close session")
	}
}

func (e *entry) checkpoint(ctx context.Context) (checkpoint, error) {
	snap, err := e.game.Session().Snapshot(ctx)
	if err != nil {
		return checkpoint{}, err
	}
	data, err := snap.Marshal()
	if err != nil {
		return checkpoint{}, err
	}
	return checkpoint{snapshot: data, prompt: e.game.Prompt()}, nil
}

// restore replaces the entry's session with a fresh one rebuilt from cp.
func (s *Server) restore(ctx context.Context, e *entry, cp checkpoint) error {
	snap, err := game.UnmarshalSnapshot(cp.snapshot)
	if err != nil {
		return err
	}
	session, err := game.Restore(ctx, s.source, snap, s.options...)
	if err != nil {
		return err
	}

	old := e.game.Session()
	e.game = engine.Resume(session, cp.prompt)
	if err := old.Close(); err != nil {
		log.Warn().Err(err).Str("game", e.id.String()).Msg("close replaced session")
	}

	switch {
	case e.finished && !cp.prompt.Finished():
		e.finished = false
		metrics.ActiveGames.Inc()
	case !e.finished && cp.prompt.Finished():
		e.finished = true
		metrics.ActiveGames.Dec()
	}
	return nil
}

func (s *Server) markFinished(e *entry) {
	if e.finished || !e.game.Prompt().Finished() {
		return
	}
	e.finished = true
	session := e.game.Session()
	metrics.GamesFinished.WithLabelValues(session.Theme(), session.State().String()).Inc()
	metrics.GameTurns.Observe(float64(session.Iteration()))
	metrics.ActiveGames.Dec()
}

func (e *entry) view() communication.GameView {
	session := e.game.Session()
	return communication.GameView{
		ID:      e.id.String(),
		Theme:   session.Theme(),
		Version: session.Version().String(),
		Variant: session.Params().Variant.String(),
		Prompt:  e.game.Prompt(),
		Answers: len(session.Answers()),
		Guesses: session.GuessCount(),
		CanUndo: e.undo != nil,
	}
}
