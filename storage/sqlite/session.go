package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"guesser/failure"
	"guesser/storage"
)

// Session is one game's private copy of a snapshot. Ratings and used flags change here only.
type Session struct {
	db *sql.DB
	id uint64
}

var _ storage.Gateway = (*Session)(nil)

// ID returns the session id the copy was created for.
func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) RankedCandidates(ctx context.Context, threshold float64) ([]storage.Candidate, error) {
	const query = `SELECT id, rating FROM entities WHERE used = 0 AND rating >= ? ORDER BY rating DESC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, failure.Storage("ranked candidates", query, err)
	}
	defer rows.Close()

	candidates := []storage.Candidate{}
	for rows.Next() {
		var c storage.Candidate
		if err := rows.Scan(&c.ID, &c.Rating); err != nil {
			return nil, wrapScan("ranked candidates", query, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("ranked candidates", query, err)
	}
	return candidates, nil
}

func (s *Session) RankedQuestions(ctx context.Context, threshold float64) ([]int64, error) {
	const query = `
SELECT q.id
FROM questions q
JOIN (
    SELECT a.question_id, COUNT(*) AS answered
    FROM answers a
    JOIN entities e ON e.id = a.entity_id
    WHERE e.used = 0 AND e.rating >= ?
    GROUP BY a.question_id
    HAVING COUNT(*) >= 1
) c ON c.question_id = q.id
WHERE q.used = 0
ORDER BY c.answered DESC, q.id ASC`
	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, failure.Storage("ranked questions", query, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapScan("ranked questions", query, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("ranked questions", query, err)
	}
	return ids, nil
}

func (s *Session) EntitiesAnswering(ctx context.Context, questionID int64) ([]storage.Respondent, error) {
	const query = `
SELECT a.entity_id, a.answer_value, e.rating
FROM answers a
JOIN entities e ON e.id = a.entity_id
WHERE a.question_id = ?
ORDER BY a.entity_id`
	rows, err := s.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, failure.Storage("entities answering", query, err).WithContext("question", questionID)
	}
	defer rows.Close()

	respondents := []storage.Respondent{}
	for rows.Next() {
		var r storage.Respondent
		if err := rows.Scan(&r.EntityID, &r.Value, &r.Rating); err != nil {
			return nil, wrapScan("entities answering", query, err)
		}
		respondents = append(respondents, r)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("entities answering", query, err)
	}
	return respondents, nil
}

func (s *Session) EntitiesAnsweringMany(ctx context.Context, questionIDs []int64) ([]storage.Profile, error) {
	if len(questionIDs) == 0 {
		return []storage.Profile{}, nil
	}
	query := `
SELECT a.entity_id, e.rating, a.question_id, a.answer_value
FROM answers a
JOIN entities e ON e.id = a.entity_id
WHERE e.used = 0 AND a.question_id IN (` + placeholders(len(questionIDs)) + `)
ORDER BY a.entity_id, a.question_id`
	rows, err := s.db.QueryContext(ctx, query, int64Args(questionIDs)...)
	if err != nil {
		return nil, failure.Storage("entities answering many", query, err)
	}
	defer rows.Close()

	profiles := []storage.Profile{}
	for rows.Next() {
		var entityID, questionID int64
		var rating, value float64
		if err := rows.Scan(&entityID, &rating, &questionID, &value); err != nil {
			return nil, wrapScan("entities answering many", query, err)
		}
		if n := len(profiles); n == 0 || profiles[n-1].EntityID != entityID {
			profiles = append(profiles, storage.Profile{EntityID: entityID, Rating: rating})
		}
		last := &profiles[len(profiles)-1]
		last.Answers = append(last.Answers, storage.AnswerValue{QuestionID: questionID, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("entities answering many", query, err)
	}
	return profiles, nil
}

func (s *Session) BatchUpdateRatings(ctx context.Context, updates []storage.RatingUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	const query = `UPDATE entities SET rating = ? WHERE id = ?`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return failure.Storage("batch update ratings", "BEGIN", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return failure.Storage("batch update ratings", query, err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Rating, u.EntityID); err != nil {
			_ = tx.Rollback()
			return failure.Storage("batch update ratings", query, err).WithContext("entity", u.EntityID)
		}
	}
	if err := tx.Commit(); err != nil {
		return failure.Storage("batch update ratings", "COMMIT", err)
	}
	return nil
}

func (s *Session) MarkUsed(ctx context.Context, kind storage.Kind, id int64) error {
	query := `UPDATE entities SET used = 1 WHERE id = ?`
	if kind == storage.QuestionKind {
		query = `UPDATE questions SET used = 1 WHERE id = ?`
	}
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return failure.Storage("mark used", query, err).WithContext("kind", kind.String()).WithContext("id", id)
	}
	return nil
}

func (s *Session) MinMaxRating(ctx context.Context) (float64, float64, bool, error) {
	const query = `SELECT MAX(rating), MIN(rating) FROM entities WHERE used = 0 AND rating > ?`
	var maximum, minimum sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, storage.ExclusionRating).Scan(&maximum, &minimum); err != nil {
		return 0, 0, false, failure.Storage("min max rating", query, err)
	}
	if !maximum.Valid || !minimum.Valid {
		return 0, 0, false, nil
	}
	return maximum.Float64, minimum.Float64, true, nil
}

func (s *Session) EntityStates(ctx context.Context) ([]storage.EntityState, error) {
	const query = `SELECT id, rating, used FROM entities ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, failure.Storage("entity states", query, err)
	}
	defer rows.Close()

	states := []storage.EntityState{}
	for rows.Next() {
		var e storage.EntityState
		if err := rows.Scan(&e.ID, &e.Rating, &e.Used); err != nil {
			return nil, wrapScan("entity states", query, err)
		}
		states = append(states, e)
	}
	if err := rows.Err(); err != nil {
		return nil, failure.Storage("entity states", query, err)
	}
	return states, nil
}

func (s *Session) EntityName(ctx context.Context, id int64) (string, error) {
	const query = `SELECT name FROM entities WHERE id = ?`
	return s.lookupText(ctx, "entity name", query, id)
}

func (s *Session) QuestionText(ctx context.Context, id int64) (string, error) {
	const query = `SELECT text FROM questions WHERE id = ?`
	return s.lookupText(ctx, "question text", query, id)
}

func (s *Session) lookupText(ctx context.Context, op, query string, id int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", failure.Storage(op, query, err).WithContext("id", id)
	}
	if err != nil {
		return "", failure.Storage(op, query, err)
	}
	return text, nil
}

// Close drops the in-memory copy.
func (s *Session) Close() error {
	return s.db.Close()
}
