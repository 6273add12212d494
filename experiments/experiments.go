// Package experiments measures the engine by self-play: an oracle plays every entity of a
// theme and the outcome of each game is written as CSV.
package experiments

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"guesser/catalog"
	"guesser/engine"
	"guesser/experiments/metrics"
	"guesser/game"
	"guesser/player"
	"guesser/storage"
)

// Source is a storage.Source that can also list the stored entity profiles.
type Source interface {
	storage.Source
	Profiles(ctx context.Context, theme string, version catalog.Version) (map[int64]map[int64]float64, error)
}

type Config struct {
	Name    string
	Theme   string
	Version catalog.Version // zero means the version the first session resolves to
	Options []game.Option
	Workers int
	// OutDir receives <Name>/<timestamp>/*.csv; nothing is written when empty.
	OutDir string
}

type Summary struct {
	Games     int
	Victories int
	Turns     int
	Guesses   int
	Dir       string
}

func (s Summary) VictoryRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Victories) / float64(s.Games)
}

// Run plays one game per entity of the theme.
func Run(ctx context.Context, src Source, cfg Config, clock clockwork.Clock) (Summary, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ids := game.NewSequentialAllocator(game.DefaultMaxSessionID)

	version := cfg.Version
	if version.IsZero() {
		latest, err := game.New(ctx, src, ids, cfg.Theme, version, cfg.Options...)
		if err != nil {
			return Summary{}, err
		}
		version = latest.Version()
		_ = latest.Close()
	}
	profiles, err := src.Profiles(ctx, cfg.Theme, version)
	if err != nil {
		return Summary{}, err
	}
	targets := make([]int64, 0, len(profiles))
	for id := range profiles {
		targets = append(targets, id)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	log.Info().Msgf("starting %s experiment on %s %s with %d targets...", cfg.Name, cfg.Theme, version, len(targets))

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Each goroutine writes only its own index.
	gameRecords := make([]metrics.GameRecord, len(targets))
	turnRecords := make([][]metrics.TurnRecord, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(workers, max(len(targets), 1)))
	for i, target := range targets {
		g.Go(func() error {
			record, turns, err := runGame(gctx, src, ids, cfg, version, target, profiles[target], clock)
			if err != nil {
				return fmt.Errorf("target %d: %w", target, err)
			}
			record.ID = i + 1
			gameRecords[i] = record
			for _, turn := range turns {
				turnRecords[i] = append(turnRecords[i], metrics.TurnRecord{Game: i + 1, TurnMetric: turn})
			}
			log.Debug().Msgf("completed game %d of %d: target=%s outcome=%s", i+1, len(targets), record.Target, record.Outcome)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Games: len(gameRecords)}
	flatTurns := []metrics.TurnRecord{}
	for i, record := range gameRecords {
		if record.Found {
			summary.Victories++
		}
		summary.Turns += record.Turns
		summary.Guesses += record.Guesses
		flatTurns = append(flatTurns, turnRecords[i]...)
	}
	log.Info().Msgf("completed %s experiment: %d/%d found", cfg.Name, summary.Victories, summary.Games)

	if cfg.OutDir == "" {
		return summary, nil
	}
	writer, err := metrics.NewWriter(cfg.OutDir, cfg.Name, clock.Now())
	if err != nil {
		return summary, err
	}
	if err := writer.WriteGameRecords(gameRecords); err != nil {
		return summary, err
	}
	log.Info().Msg("stored game records")
	if err := writer.WriteTurnRecords(flatTurns); err != nil {
		return summary, err
	}
	log.Info().Msg("stored turn records")
	summary.Dir = writer.Dir()
	return summary, nil
}

func runGame(ctx context.Context, src Source, ids game.Allocator, cfg Config, version catalog.Version, target int64, profile map[int64]float64, clock clockwork.Clock) (metrics.GameRecord, []metrics.TurnMetric, error) {
	session, err := game.New(ctx, src, ids, cfg.Theme, version, cfg.Options...)
	if err != nil {
		return metrics.GameRecord{}, nil, err
	}
	defer session.Close()

	name, err := session.EntityName(ctx, target)
	if err != nil {
		return metrics.GameRecord{}, nil, err
	}

	g := engine.NewGame(session, engine.WithCollector(metrics.NewCollector(clock)))
	prompt, err := engine.Run(ctx, g, player.NewOracle(target, profile))
	if err != nil {
		return metrics.GameRecord{}, nil, err
	}

	gameMetric, turns := g.Metrics()
	return metrics.GameRecord{
		Target:     name,
		Found:      prompt.Victory(),
		GameMetric: gameMetric,
	}, turns, nil
}
