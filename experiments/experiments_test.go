package experiments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"guesser/catalog"
	"guesser/game"
	"guesser/storage/memory"
)

func animalSource(t *testing.T) *memory.Source {
	t.Helper()
	theme, err := catalog.LoadTheme("../themes/animals.toml")
	require.NoError(t, err)
	src, err := memory.NewSource(theme)
	require.NoError(t, err)
	return src
}

func TestRun(t *testing.T) {
	out := t.TempDir()
	summary, err := Run(context.Background(), animalSource(t), Config{
		Name:    "oracle",
		Theme:   "animals",
		Workers: 3,
		OutDir:  out,
	}, clockwork.NewFakeClock())
	require.NoError(t, err)

	require.Equal(t, 8, summary.Games)
	require.LessOrEqual(t, summary.Victories, summary.Games)
	require.Positive(t, summary.Turns)

	for _, name := range []string{"game_records.csv", "turn_records.csv"} {
		_, err := os.Stat(filepath.Join(summary.Dir, name))
		require.NoError(t, err, name)
	}
}

func TestRunUnknownTheme(t *testing.T) {
	_, err := Run(context.Background(), animalSource(t), Config{Theme: "plants"}, nil)
	require.Error(t, err)
}

func TestCompareVariants(t *testing.T) {
	results, err := CompareVariants(context.Background(), animalSource(t), Config{Name: "cmp", Theme: "animals", Workers: 2}, clockwork.NewFakeClock())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 8, results[game.VariantResumed].Games)
	require.Empty(t, results[game.VariantStandard].Dir, "nothing is written without an output directory")
}
