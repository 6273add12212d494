package metrics

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"guesser/game"
)

type TurnMetric struct {
	Iteration        int
	State            game.State
	Candidates       int
	GuessThreshold   float64
	ComputeThreshold float64
	Duration         time.Duration
}

type GameMetric struct {
	Session   uint64
	Theme     string
	Outcome   game.State
	Turns     int
	Answers   int
	Guesses   int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Collector records one game. Turn is called once per state decision.
type Collector interface {
	Start(session uint64, theme string)
	Turn(state game.State, iteration, candidates int, guessThreshold, computeThreshold float64)
	Complete(outcome game.State, answers, guesses int) (GameMetric, []TurnMetric)
}

type collector struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	session   uint64
	theme     string
	startTime time.Time
	lastTurn  time.Time
	turns     []TurnMetric
}

func NewCollector(clock clockwork.Clock) Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &collector{clock: clock}
}

func (m *collector) Start(session uint64, theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	m.theme = theme
	m.startTime = m.clock.Now()
	m.lastTurn = m.startTime
	m.turns = nil
}

func (m *collector) Turn(state game.State, iteration, candidates int, guessThreshold, computeThreshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.turns = append(m.turns, TurnMetric{
		Iteration:        iteration,
		State:            state,
		Candidates:       candidates,
		GuessThreshold:   guessThreshold,
		ComputeThreshold: computeThreshold,
		Duration:         now.Sub(m.lastTurn),
	})
	m.lastTurn = now
}

func (m *collector) Complete(outcome game.State, answers, guesses int) (GameMetric, []TurnMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := m.clock.Now()
	return GameMetric{
		Session:   m.session,
		Theme:     m.theme,
		Outcome:   outcome,
		Turns:     len(m.turns),
		Answers:   answers,
		Guesses:   guesses,
		StartTime: m.startTime,
		EndTime:   end,
		Duration:  end.Sub(m.startTime),
	}, append([]TurnMetric(nil), m.turns...)
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(uint64, string)                       {}
func (m *dummyCollector) Turn(game.State, int, int, float64, float64) {}
func (m *dummyCollector) Complete(game.State, int, int) (GameMetric, []TurnMetric) {
	return GameMetric{}, nil
}
