// Package player answers a guessing session: interactively on a terminal, or automatically
// from a known answer profile.
package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"guesser/game"
)

// Player is whoever is thinking of the entity.
type Player interface {
	// Answer returns one of the accepted answer values for the question.
	Answer(ctx context.Context, question string, id int64) (float64, error)
	// ConfirmGuess reports whether the guessed entity is the one.
	ConfirmGuess(ctx context.Context, name string, id int64) (bool, error)
	// ConfirmAny reports whether any of the last candidates is the one.
	ConfirmAny(ctx context.Context, names []string, ids []int64) (bool, error)
}

// Terminal asks a human through a reader/writer pair.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer

	question *color.Color
	guess    *color.Color
	hint     *color.Color
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:       bufio.NewScanner(in),
		out:      out,
		question: color.New(color.FgCyan, color.Bold),
		guess:    color.New(color.FgYellow, color.Bold),
		hint:     color.New(color.Faint),
	}
}

func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", io.EOF
	}
	return t.in.Text(), nil
}

func (t *Terminal) Answer(ctx context.Context, question string, id int64) (float64, error) {
	for {
		t.question.Fprintln(t.out, question)
		t.hint.Fprintf(t.out, "[%s / y, py, ?, pn, n] ", strings.Join(game.AnswerLabels(), ", "))

		line, err := t.readLine(ctx)
		if err != nil {
			return 0, err
		}
		value, err := game.ParseAnswer(line)
		if err == nil {
			return value, nil
		}
		color.New(color.FgRed).Fprintf(t.out, "%q is not an answer I understand\n", strings.TrimSpace(line))
	}
}

func (t *Terminal) ConfirmGuess(ctx context.Context, name string, id int64) (bool, error) {
	t.guess.Fprintf(t.out, "Is it %s?\n", name)
	return t.yesNo(ctx)
}

func (t *Terminal) ConfirmAny(ctx context.Context, names []string, ids []int64) (bool, error) {
	t.guess.Fprintln(t.out, "Is it one of these?")
	for i, name := range names {
		fmt.Fprintf(t.out, "  %d. %s\n", i+1, name)
	}
	return t.yesNo(ctx)
}

func (t *Terminal) yesNo(ctx context.Context) (bool, error) {
	for {
		t.hint.Fprint(t.out, "[y/n] ")
		line, err := t.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
