package game

import (
	"strings"

	"guesser/failure"
)

const (
	AnswerYes         = 1.0
	AnswerProbablyYes = 0.5
	AnswerDontKnow    = 0.0
	AnswerProbablyNo  = -0.5
	AnswerNo          = -1.0
)

var answerLabels = []struct {
	label string
	short string
	value float64
}{
	{"Yes", "y", AnswerYes},
	{"Probably Yes", "py", AnswerProbablyYes},
	{"I do not know", "?", AnswerDontKnow},
	{"Probably No", "pn", AnswerProbablyNo},
	{"No", "n", AnswerNo},
}

// AnswerLabels lists the accepted labels from Yes to No.
func AnswerLabels() []string {
	labels := make([]string, len(answerLabels))
	for i, a := range answerLabels {
		labels[i] = a.label
	}
	return labels
}

// ParseAnswer maps a label (case-insensitive) or its short form to the answer value.
func ParseAnswer(input string) (float64, error) {
	input = strings.TrimSpace(input)
	for _, a := range answerLabels {
		if strings.EqualFold(input, a.label) || strings.EqualFold(input, a.short) {
			return a.value, nil
		}
	}
	return 0, failure.InvalidAnswer(input)
}

// AnswerLabel is the inverse of ParseAnswer. Unknown values are returned as "".
func AnswerLabel(value float64) string {
	for _, a := range answerLabels {
		if a.value == value {
			return a.label
		}
	}
	return ""
}

func ValidAnswer(value float64) bool {
	return AnswerLabel(value) != ""
}
