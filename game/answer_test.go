package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"guesser/failure"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"Yes", 1},
		{"probably yes", 0.5},
		{"I do not know", 0},
		{"  Probably No ", -0.5},
		{"NO", -1},
		{"y", 1},
		{"py", 0.5},
		{"?", 0},
		{"pn", -0.5},
		{"n", -1},
	}
	for _, tt := range tests {
		got, err := ParseAnswer(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		require.Equal(t, tt.want, got, "input %q", tt.input)
	}

	for _, bad := range []string{"", "maybe", "yes!", "0.5"} {
		_, err := ParseAnswer(bad)
		require.True(t, failure.Is(err, failure.KindInvalidAnswer), "input %q", bad)
	}
}

func TestAnswerLabel(t *testing.T) {
	for _, label := range AnswerLabels() {
		value, err := ParseAnswer(label)
		require.NoError(t, err)
		require.Equal(t, label, AnswerLabel(value))
		require.True(t, ValidAnswer(value))
	}
	require.False(t, ValidAnswer(0.25))
	require.Equal(t, "", AnswerLabel(2))
}
