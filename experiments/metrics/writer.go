package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// GameRecord is one oracle game of an experiment.
type GameRecord struct {
	ID     int
	Target string // Entity the oracle was thinking of
	Found  bool
	GameMetric
}

type TurnRecord struct {
	Game int // GameRecord.ID
	TurnMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates <root>/<name>/<timestamp> and writes every file there.
func NewWriter(root, name string, now time.Time) (*Writer, error) {
	timestamp := now.UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteGameRecords(records []GameRecord) error {
	header := []string{"id", "session", "theme", "target", "found", "outcome", "turns", "answers", "guesses", "start_time", "end_time", "duration"}
	return w.write("game_records.csv", header, len(records), func(i int) []string {
		record := records[i]
		return []string{
			strconv.Itoa(record.ID),
			strconv.FormatUint(record.Session, 10),
			record.Theme,
			record.Target,
			strconv.FormatBool(record.Found),
			record.Outcome.String(),
			strconv.Itoa(record.Turns),
			strconv.Itoa(record.Answers),
			strconv.Itoa(record.Guesses),
			record.StartTime.Format(time.RFC3339),
			record.EndTime.Format(time.RFC3339),
			record.Duration.String(),
		}
	})
}

func (w *Writer) WriteTurnRecords(records []TurnRecord) error {
	header := []string{"game", "iteration", "state", "candidates", "guess_threshold", "compute_threshold", "duration"}
	return w.write("turn_records.csv", header, len(records), func(i int) []string {
		record := records[i]
		return []string{
			strconv.Itoa(record.Game),
			strconv.Itoa(record.Iteration),
			record.State.String(),
			strconv.Itoa(record.Candidates),
			strconv.FormatFloat(record.GuessThreshold, 'f', 4, 64),
			strconv.FormatFloat(record.ComputeThreshold, 'f', 4, 64),
			record.Duration.String(),
		}
	})
}

func (w *Writer) write(name string, header []string, n int, row func(i int) []string) error {
	path := filepath.Join(w.baseDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	for i := 0; i < n; i++ {
		err = writer.Write(row(i))
		if err != nil {
			return fmt.Errorf("failed to write %s row: %w", name, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
