package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GamesStarted counts sessions created by theme
	GamesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guesser_games_started_total",
			Help: "Total games started by theme",
		},
		[]string{"theme"},
	)

	// GamesFinished counts finished sessions by theme and outcome (victory/give_up)
	GamesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guesser_games_finished_total",
			Help: "Total games finished by theme and outcome",
		},
		[]string{"theme", "outcome"},
	)

	// GameTurns tracks how many state decisions a finished game took
	GameTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guesser_game_turns",
			Help:    "Number of turns per finished game",
			Buckets: []float64{3, 6, 9, 12, 15, 18, 21, 24, 27, 30},
		},
	)

	// AnswersReceived counts user answers by label
	AnswersReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guesser_answers_total",
			Help: "Total answers received by answer label",
		},
		[]string{"answer"},
	)

	// Errors counts failed requests by failure kind
	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guesser_errors_total",
			Help: "Total failed operations by failure kind",
		},
		[]string{"kind"},
	)

	// ActiveGames tracks sessions currently held by the server
	ActiveGames = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guesser_active_games",
			Help: "Number of games currently in progress",
		},
	)
)
