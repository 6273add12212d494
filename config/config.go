// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"guesser/game"
)

type Config struct {
	DataDir      string        `env:"GUESSER_DATA_DIR" envDefault:"data"`
	HTTPAddr     string        `env:"GUESSER_HTTP_ADDR" envDefault:":8080"`
	LogLevel     string        `env:"GUESSER_LOG_LEVEL" envDefault:"info"`
	MaxSessionID uint64        `env:"GUESSER_MAX_SESSION_ID" envDefault:"1000000"`
	IdleTimeout  time.Duration `env:"GUESSER_IDLE_TIMEOUT" envDefault:"30m"`

	// Game tuning. Zero (or -1 for the start iterations) keeps the built-in default.
	Variant                 string  `env:"GUESSER_VARIANT" envDefault:"standard"`
	IterationLimit          int     `env:"GUESSER_ITERATION_LIMIT"`
	GuessLimit              int     `env:"GUESSER_GUESS_LIMIT"`
	StartGuessIteration     int     `env:"GUESSER_START_GUESS_ITERATION" envDefault:"-1"`
	StartSelectiveIteration int     `env:"GUESSER_START_SELECTIVE_ITERATION" envDefault:"-1"`
	GuessThresholdMinimum   float64 `env:"GUESSER_GUESS_THRESHOLD_MINIMUM"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Level is the zerolog level named by LogLevel.
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// GameOptions turns the tuning fields into session options.
func (c Config) GameOptions() ([]game.Option, error) {
	variant, err := game.ParseVariant(c.Variant)
	if err != nil {
		return nil, err
	}
	options := []game.Option{game.WithVariant(variant)}

	if c.IterationLimit > 0 {
		options = append(options, game.WithIterationLimit(c.IterationLimit))
	}
	if c.GuessLimit > 0 {
		options = append(options, game.WithGuessLimit(c.GuessLimit))
	}
	if c.StartGuessIteration >= 0 {
		options = append(options, game.WithStartGuessIteration(c.StartGuessIteration))
	}
	if c.StartSelectiveIteration >= 0 {
		options = append(options, game.WithStartSelectiveIteration(c.StartSelectiveIteration))
	}
	if c.GuessThresholdMinimum > 0 {
		options = append(options, game.WithGuessThresholdMinimum(c.GuessThresholdMinimum))
	}
	return options, nil
}

// Params applies GameOptions to the defaults, for display and validation.
func (c Config) Params() (game.Params, error) {
	options, err := c.GameOptions()
	if err != nil {
		return game.Params{}, err
	}
	p := game.DefaultParams()
	for _, opt := range options {
		opt(&p)
	}
	return p, nil
}
