// Package memory implements storage.Source and storage.Gateway over themes held in memory.
// It backs tests and oracle self-play where a database file is unnecessary.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"guesser/catalog"
	"guesser/failure"
	"guesser/storage"
	"guesser/utils"
)

// Source serves session copies of the themes it was given.
type Source struct {
	mu     sync.RWMutex
	themes map[string][]catalog.Theme
}

func NewSource(themes ...catalog.Theme) (*Source, error) {
	s := &Source{themes: make(map[string][]catalog.Theme)}
	for _, t := range themes {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add publishes a theme version.
func (s *Source) Add(theme catalog.Theme) error {
	if err := theme.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.themes[theme.Name] {
		if existing.Version.Compare(theme.Version) == 0 {
			return failure.Configuration("theme %s version %s already exists", theme.Name, theme.Version)
		}
	}
	versions := append(s.themes[theme.Name], theme)
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version.Less(versions[j].Version) })
	s.themes[theme.Name] = versions
	return nil
}

func (s *Source) Themes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.themes))
	for name := range s.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Source) CreateSessionCopy(ctx context.Context, theme string, version catalog.Version, sessionID uint64) (storage.Gateway, catalog.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.Version{}, failure.Storage("create session copy", "", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.themes[theme]
	if len(versions) == 0 {
		return nil, catalog.Version{}, failure.Configuration("theme %q not found", theme)
	}
	if version.IsZero() {
		latest := versions[len(versions)-1]
		return NewSession(latest), latest.Version, nil
	}
	for _, t := range versions {
		if t.Version.Compare(version) == 0 {
			return NewSession(t), t.Version, nil
		}
	}
	return nil, catalog.Version{}, failure.Configuration("theme %s version %s not found", theme, version)
}

type entityRow struct {
	id     int64
	name   string
	rating float64
	used   bool
}

type questionRow struct {
	id   int64
	text string
	used bool
}

// Session is a private mutable copy of one theme. It is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	entities  []entityRow
	questions []questionRow
	// question id -> entity id -> stored value
	answers map[int64]map[int64]float64
	closed  bool
}

var _ storage.Gateway = (*Session)(nil)

// NewSession builds a fresh copy of theme with base ratings and nothing used.
func NewSession(theme catalog.Theme) *Session {
	s := &Session{answers: make(map[int64]map[int64]float64)}
	index := theme.QuestionIndex()
	for i, q := range theme.Questions {
		s.questions = append(s.questions, questionRow{id: int64(i + 1), text: q.Text})
		s.answers[int64(i+1)] = make(map[int64]float64)
	}
	for i, e := range theme.Entities {
		id := int64(i + 1)
		s.entities = append(s.entities, entityRow{id: id, name: e.Name, rating: theme.BaseRating(e)})
		for key, value := range e.Answers {
			s.answers[index[key]][id] = value
		}
	}
	return s
}

func (s *Session) check(ctx context.Context, op string) error {
	if s.closed {
		return failure.Storage(op, "", fmt.Errorf("session closed"))
	}
	if err := ctx.Err(); err != nil {
		return failure.Storage(op, "", err)
	}
	return nil
}

func (s *Session) entity(id int64) *entityRow {
	for i := range s.entities {
		if s.entities[i].id == id {
			return &s.entities[i]
		}
	}
	return nil
}

func (s *Session) RankedCandidates(ctx context.Context, threshold float64) ([]storage.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ranked candidates"); err != nil {
		return nil, err
	}
	candidates := []storage.Candidate{}
	for _, e := range s.entities {
		if !e.used && e.rating >= threshold {
			candidates = append(candidates, storage.Candidate{ID: e.id, Rating: e.rating})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Rating > candidates[j].Rating })
	return candidates, nil
}

func (s *Session) RankedQuestions(ctx context.Context, threshold float64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ranked questions"); err != nil {
		return nil, err
	}
	type counted struct {
		id    int64
		count int
	}
	ranked := []counted{}
	for _, q := range s.questions {
		if q.used {
			continue
		}
		count := 0
		for entityID := range s.answers[q.id] {
			if e := s.entity(entityID); e != nil && !e.used && e.rating >= threshold {
				count++
			}
		}
		if count >= 1 {
			ranked = append(ranked, counted{id: q.id, count: count})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	return ids, nil
}

func (s *Session) EntitiesAnswering(ctx context.Context, questionID int64) ([]storage.Respondent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "entities answering"); err != nil {
		return nil, err
	}
	respondents := []storage.Respondent{}
	for _, e := range s.entities {
		if value, ok := s.answers[questionID][e.id]; ok {
			respondents = append(respondents, storage.Respondent{EntityID: e.id, Value: value, Rating: e.rating})
		}
	}
	return respondents, nil
}

func (s *Session) EntitiesAnsweringMany(ctx context.Context, questionIDs []int64) ([]storage.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "entities answering many"); err != nil {
		return nil, err
	}
	ordered := append([]int64(nil), questionIDs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	profiles := []storage.Profile{}
	for _, e := range s.entities {
		if e.used {
			continue
		}
		var answers []storage.AnswerValue
		for i, qid := range ordered {
			if utils.FindIndex(ordered[:i], qid) >= 0 {
				continue
			}
			if value, ok := s.answers[qid][e.id]; ok {
				answers = append(answers, storage.AnswerValue{QuestionID: qid, Value: value})
			}
		}
		if len(answers) > 0 {
			profiles = append(profiles, storage.Profile{EntityID: e.id, Rating: e.rating, Answers: answers})
		}
	}
	return profiles, nil
}

func (s *Session) BatchUpdateRatings(ctx context.Context, updates []storage.RatingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "batch update ratings"); err != nil {
		return err
	}
	// Validate first so a bad id leaves every rating untouched.
	for _, u := range updates {
		if s.entity(u.EntityID) == nil {
			return failure.Storage("batch update ratings", "", fmt.Errorf("unknown entity %d", u.EntityID))
		}
	}
	for _, u := range updates {
		s.entity(u.EntityID).rating = u.Rating
	}
	return nil
}

func (s *Session) MarkUsed(ctx context.Context, kind storage.Kind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "mark used"); err != nil {
		return err
	}
	if kind == storage.EntityKind {
		if e := s.entity(id); e != nil {
			e.used = true
		}
		return nil
	}
	for i := range s.questions {
		if s.questions[i].id == id {
			s.questions[i].used = true
		}
	}
	return nil
}

func (s *Session) MinMaxRating(ctx context.Context) (float64, float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "min max rating"); err != nil {
		return 0, 0, false, err
	}
	ratings := []float64{}
	for _, e := range s.entities {
		if !e.used && e.rating > storage.ExclusionRating {
			ratings = append(ratings, e.rating)
		}
	}
	maximum, minimum, ok := utils.MinMax(ratings)
	return maximum, minimum, ok, nil
}

func (s *Session) EntityStates(ctx context.Context) ([]storage.EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "entity states"); err != nil {
		return nil, err
	}
	states := make([]storage.EntityState, 0, len(s.entities))
	for _, e := range s.entities {
		states = append(states, storage.EntityState{ID: e.id, Rating: e.rating, Used: e.used})
	}
	return states, nil
}

func (s *Session) EntityName(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "entity name"); err != nil {
		return "", err
	}
	if e := s.entity(id); e != nil {
		return e.name, nil
	}
	return "", failure.Storage("entity name", "", fmt.Errorf("unknown entity %d", id))
}

func (s *Session) QuestionText(ctx context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "question text"); err != nil {
		return "", err
	}
	for _, q := range s.questions {
		if q.id == id {
			return q.text, nil
		}
	}
	return "", failure.Storage("question text", "", fmt.Errorf("unknown question %d", id))
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Profiles returns every entity's answers (entity id -> question id -> value) for a published
// theme version.
func (s *Source) Profiles(ctx context.Context, theme string, version catalog.Version) (map[int64]map[int64]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.themes[theme] {
		if t.Version.Compare(version) != 0 {
			continue
		}
		index := t.QuestionIndex()
		profiles := make(map[int64]map[int64]float64, len(t.Entities))
		for i, e := range t.Entities {
			answers := make(map[int64]float64, len(e.Answers))
			for key, value := range e.Answers {
				answers[index[key]] = value
			}
			profiles[int64(i+1)] = answers
		}
		return profiles, nil
	}
	return nil, failure.Configuration("theme %s version %s not found", theme, version)
}
