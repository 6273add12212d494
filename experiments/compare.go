package experiments

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"guesser/game"
)

// CompareVariants runs the same theme once per session variant.
func CompareVariants(ctx context.Context, src Source, base Config, clock clockwork.Clock) (map[game.Variant]Summary, error) {
	results := make(map[game.Variant]Summary)
	for _, variant := range []game.Variant{game.VariantStandard, game.VariantResumed} {
		cfg := base
		cfg.Name = base.Name + "_" + variant.String()
		cfg.Options = append(append([]game.Option(nil), base.Options...), game.WithVariant(variant))

		summary, err := Run(ctx, src, cfg, clock)
		if err != nil {
			return nil, err
		}
		results[variant] = summary
		log.Info().Msgf("variant %s: %.0f%% found, %.1f turns per game", variant,
			100*summary.VictoryRate(), float64(summary.Turns)/float64(max(summary.Games, 1)))
	}
	return results, nil
}
