// Package sqlite provides the SQLite-backed theme snapshots and per-session copies.
//
// Snapshots live at <dir>/<theme>/<version>/snapshot.db and are never written after import.
// Every game gets a private in-memory database filled from the snapshot it was created from.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"guesser/catalog"
	"guesser/failure"
	"guesser/storage"
)

//go:embed schema/snapshot.sql
var snapshotSchema string

//go:embed schema/session.sql
var sessionSchema string

const snapshotFile = "snapshot.db"

// Store manages versioned theme snapshots under a data directory.
type Store struct {
	dir string
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, failure.Configuration("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, failure.Configuration("create data directory %s: %v", dir, err)
	}
	return &Store{dir: filepath.Clean(dir)}, nil
}

func (s *Store) snapshotPath(theme string, version catalog.Version) string {
	return filepath.Join(s.dir, theme, version.String(), snapshotFile)
}

// Import writes theme as a new snapshot version. Existing versions are never overwritten.
func (s *Store) Import(ctx context.Context, theme catalog.Theme) (string, error) {
	if err := theme.Validate(); err != nil {
		return "", err
	}
	path := s.snapshotPath(theme.Name, theme.Version)
	if _, err := os.Stat(path); err == nil {
		return "", failure.Configuration("theme %s version %s already exists", theme.Name, theme.Version)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", failure.Configuration("create version directory: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", failure.Storage("open snapshot", "", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		return "", failure.Storage("create snapshot schema", snapshotSchema, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", failure.Storage("begin import", "", err)
	}
	if err := importRows(ctx, tx, theme); err != nil {
		_ = tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", failure.Storage("commit import", "", err)
	}

	log.Info().Str("theme", theme.Name).Str("version", theme.Version.String()).
		Int("entities", len(theme.Entities)).Int("questions", len(theme.Questions)).
		Msg("imported theme snapshot")
	return path, nil
}

func importRows(ctx context.Context, tx *sql.Tx, theme catalog.Theme) error {
	const insertQuestion = `INSERT INTO questions (id, key, text) VALUES (?, ?, ?)`
	const insertEntity = `INSERT INTO entities (id, name, description, base_rating, popularity) VALUES (?, ?, ?, ?, ?)`
	const insertAnswer = `INSERT INTO answers (entity_id, question_id, answer_value) VALUES (?, ?, ?)`

	index := theme.QuestionIndex()
	for _, q := range theme.Questions {
		if _, err := tx.ExecContext(ctx, insertQuestion, index[q.Key], q.Key, q.Text); err != nil {
			return failure.Storage("import question", insertQuestion, err).WithContext("key", q.Key)
		}
	}

	for i, e := range theme.Entities {
		id := int64(i + 1)
		if _, err := tx.ExecContext(ctx, insertEntity, id, e.Name, e.Description, theme.BaseRating(e), e.Popularity); err != nil {
			return failure.Storage("import entity", insertEntity, err).WithContext("name", e.Name)
		}
		for key, value := range e.Answers {
			if _, err := tx.ExecContext(ctx, insertAnswer, id, index[key], value); err != nil {
				return failure.Storage("import answer", insertAnswer, err).
					WithContext("entity", e.Name).WithContext("question", key)
			}
		}
	}
	return nil
}

// Themes lists theme names that have at least one directory under the data dir.
func (s *Store) Themes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, failure.Configuration("read data directory: %v", err)
	}
	themes := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			themes = append(themes, entry.Name())
		}
	}
	sort.Strings(themes)
	return themes, nil
}

// Versions lists the published versions of theme, oldest first.
func (s *Store) Versions(ctx context.Context, theme string) ([]catalog.Version, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, theme))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.Configuration("theme %q not found", theme)
		}
		return nil, failure.Configuration("read theme %q: %v", theme, err)
	}

	versions := []catalog.Version{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		v, err := catalog.ParseVersion(entry.Name())
		if err != nil {
			log.Warn().Str("theme", theme).Str("dir", entry.Name()).Msg("skipping directory with unparsable version")
			continue
		}
		if _, err := os.Stat(s.snapshotPath(theme, v)); err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })
	return versions, nil
}

// LatestVersion returns the newest published version of theme.
func (s *Store) LatestVersion(ctx context.Context, theme string) (catalog.Version, error) {
	versions, err := s.Versions(ctx, theme)
	if err != nil {
		return catalog.Version{}, err
	}
	if len(versions) == 0 {
		return catalog.Version{}, failure.Configuration("theme %q has no versions", theme)
	}
	return versions[len(versions)-1], nil
}

// Profiles returns every entity's stored answers (entity id -> question id -> value).
func (s *Store) Profiles(ctx context.Context, theme string, version catalog.Version) (map[int64]map[int64]float64, error) {
	path := s.snapshotPath(theme, version)
	if _, err := os.Stat(path); err != nil {
		return nil, failure.Configuration("theme %s version %s not found", theme, version)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, failure.Storage("open snapshot", "", err)
	}
	defer db.Close()

	const query = `SELECT entity_id, question_id, answer_value FROM answers ORDER BY entity_id, question_id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, failure.Storage("load profiles", query, err)
	}
	defer rows.Close()

	profiles := make(map[int64]map[int64]float64)
	for rows.Next() {
		var entityID, questionID int64
		var value float64
		if err := rows.Scan(&entityID, &questionID, &value); err != nil {
			return nil, failure.Storage("scan profile", query, err)
		}
		if profiles[entityID] == nil {
			profiles[entityID] = make(map[int64]float64)
		}
		profiles[entityID][questionID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("load profiles", query, err)
	}
	return profiles, nil
}

// CreateSessionCopy clones a snapshot into a private in-memory database.
func (s *Store) CreateSessionCopy(ctx context.Context, theme string, version catalog.Version, sessionID uint64) (storage.Gateway, catalog.Version, error) {
	if version.IsZero() {
		latest, err := s.LatestVersion(ctx, theme)
		if err != nil {
			return nil, catalog.Version{}, err
		}
		version = latest
	}
	path := s.snapshotPath(theme, version)
	if _, err := os.Stat(path); err != nil {
		return nil, catalog.Version{}, failure.Configuration("theme %s version %s not found", theme, version)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, catalog.Version{}, failure.Storage("open session copy", "", err)
	}
	// Every connection to ":memory:" is a different database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := fillSession(ctx, db, path); err != nil {
		_ = db.Close()
		return nil, catalog.Version{}, err
	}

	log.Debug().Uint64("session", sessionID).Str("theme", theme).Str("version", version.String()).
		Msg("created session copy")
	return &Session{db: db, id: sessionID}, version, nil
}

func fillSession(ctx context.Context, db *sql.DB, snapshot string) error {
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		return failure.Storage("create session schema", sessionSchema, err)
	}
	if _, err := db.ExecContext(ctx, `ATTACH DATABASE ? AS snap`, snapshot); err != nil {
		return failure.Storage("attach snapshot", "ATTACH DATABASE", err).WithContext("path", snapshot)
	}

	copies := []string{
		`INSERT INTO entities (id, name, rating, used) SELECT id, name, base_rating, 0 FROM snap.entities`,
		`INSERT INTO questions (id, text, rating, used) SELECT id, text, 0.0, 0 FROM snap.questions`,
		`INSERT INTO answers (entity_id, question_id, answer_value) SELECT entity_id, question_id, answer_value FROM snap.answers`,
	}
	for _, query := range copies {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return failure.Storage("copy snapshot", query, err)
		}
	}

	if _, err := db.ExecContext(ctx, `DETACH DATABASE snap`); err != nil {
		return failure.Storage("detach snapshot", "DETACH DATABASE", err)
	}
	return nil
}

var _ storage.Source = (*Store)(nil)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func wrapScan(op, query string, err error) error {
	return failure.Storage(op, query, fmt.Errorf("scan: %w", err))
}
