// Package catalog describes themes: the entities, questions and ground-truth answers a
// guessing session plays over, and the versions they are published under.
package catalog

import (
	"math"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"guesser/failure"
)

// Theme is the TOML definition of one theme version.
type Theme struct {
	Name      string     `toml:"name"`
	Version   Version    `toml:"version"`
	Questions []Question `toml:"questions"`
	Entities  []Entity   `toml:"entities"`
}

type Question struct {
	Key  string `toml:"key"`
	Text string `toml:"text"`
}

type Entity struct {
	Name        string             `toml:"name"`
	Description string             `toml:"description"`
	Popularity  int                `toml:"popularity"`
	Answers     map[string]float64 `toml:"answers"` // question key -> value in [-1, 1], never 0
}

// LoadTheme reads and validates a theme file.
func LoadTheme(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, failure.Configuration("read theme %s: %v", path, err)
	}
	return ParseTheme(data)
}

// ParseTheme decodes and validates a theme definition.
func ParseTheme(data []byte) (Theme, error) {
	var t Theme
	if _, err := toml.Decode(string(data), &t); err != nil {
		return Theme{}, failure.Configuration("decode theme: %v", err)
	}
	if err := t.Validate(); err != nil {
		return Theme{}, err
	}
	return t, nil
}

// Validate checks names, keys and answer values.
func (t Theme) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return failure.Configuration("theme name is required")
	}
	if strings.ContainsAny(t.Name, `/\.`) {
		return failure.Configuration("theme name %q must not contain path separators or dots", t.Name)
	}
	if t.Version.IsZero() {
		return failure.Configuration("theme %s: version is required", t.Name)
	}
	if len(t.Entities) == 0 || len(t.Questions) == 0 {
		return failure.Configuration("theme %s: needs at least one entity and one question", t.Name)
	}

	keys := make(map[string]bool, len(t.Questions))
	for _, q := range t.Questions {
		if q.Key == "" || q.Text == "" {
			return failure.Configuration("theme %s: question key and text are required", t.Name)
		}
		if keys[q.Key] {
			return failure.Configuration("theme %s: duplicate question key %q", t.Name, q.Key)
		}
		keys[q.Key] = true
	}

	names := make(map[string]bool, len(t.Entities))
	for _, e := range t.Entities {
		if e.Name == "" {
			return failure.Configuration("theme %s: entity name is required", t.Name)
		}
		if names[e.Name] {
			return failure.Configuration("theme %s: duplicate entity %q", t.Name, e.Name)
		}
		names[e.Name] = true
		if e.Popularity < 0 {
			return failure.Configuration("theme %s: entity %q has negative popularity", t.Name, e.Name)
		}
		for key, value := range e.Answers {
			if !keys[key] {
				return failure.Configuration("theme %s: entity %q answers unknown question %q", t.Name, e.Name, key)
			}
			if value == 0 || math.Abs(value) > 1 || math.IsNaN(value) {
				return failure.Configuration("theme %s: entity %q has invalid answer %v to %q", t.Name, e.Name, value, key)
			}
		}
	}
	return nil
}

// QuestionIndex maps question keys to their 1-based position, which storage uses as the id.
func (t Theme) QuestionIndex() map[string]int64 {
	index := make(map[string]int64, len(t.Questions))
	for i, q := range t.Questions {
		index[q.Key] = int64(i + 1)
	}
	return index
}

// BaseRating is the starting rating of an entity: popularity over entity count.
func (t Theme) BaseRating(e Entity) float64 {
	if len(t.Entities) == 0 {
		return 0
	}
	return float64(e.Popularity) / float64(len(t.Entities))
}
