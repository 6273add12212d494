package player

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestTerminal(t *testing.T) {
	ctx := context.Background()

	t.Run("re-asks until the answer parses", func(t *testing.T) {
		var out bytes.Buffer
		term := NewTerminal(strings.NewReader("maybe\nprobably no\n"), &out)
		value, err := term.Answer(ctx, "Does it fly?", 2)
		require.NoError(t, err)
		require.Equal(t, -0.5, value)
		require.Contains(t, out.String(), `"maybe" is not an answer`)
		require.Equal(t, 2, strings.Count(out.String(), "Does it fly?"))
	})

	t.Run("confirm guess", func(t *testing.T) {
		var out bytes.Buffer
		term := NewTerminal(strings.NewReader("what\nY\n"), &out)
		ok, err := term.ConfirmGuess(ctx, "Cat", 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Contains(t, out.String(), "Is it Cat?")
	})

	t.Run("confirm any lists candidates", func(t *testing.T) {
		var out bytes.Buffer
		term := NewTerminal(strings.NewReader("n\n"), &out)
		ok, err := term.ConfirmAny(ctx, []string{"Cat", "Dog"}, []int64{1, 2})
		require.NoError(t, err)
		require.False(t, ok)
		require.Contains(t, out.String(), "2. Dog")
	})

	t.Run("end of input", func(t *testing.T) {
		term := NewTerminal(strings.NewReader(""), io.Discard)
		_, err := term.Answer(ctx, "Does it fly?", 2)
		require.ErrorIs(t, err, io.EOF)
	})
}

func TestOracle(t *testing.T) {
	ctx := context.Background()
	o := NewOracle(3, map[int64]float64{1: 1, 2: -0.6, 3: 0.3, 4: -0.1})

	tests := map[int64]float64{1: 1, 2: -0.5, 3: 0.5, 4: 0, 5: 0}
	for id, want := range tests {
		got, err := o.Answer(ctx, "", id)
		require.NoError(t, err)
		require.Equal(t, want, got, "question %d", id)
	}

	ok, err := o.ConfirmGuess(ctx, "", 3)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = o.ConfirmGuess(ctx, "", 1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = o.ConfirmAny(ctx, nil, []int64{1, 3})
	require.NoError(t, err)
	require.True(t, ok)
}
