package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"guesser/catalog"
	"guesser/storage"
)

// Snapshot is the serializable state of a session, including the ratings and used flags of
// its private copy, so a restored session continues exactly where the original stood.
type Snapshot struct {
	ID               uint64                `msgpack:"id"`
	Theme            string                `msgpack:"theme"`
	Version          catalog.Version       `msgpack:"version"`
	Variant          Variant               `msgpack:"variant"`
	State            State                 `msgpack:"state"`
	Iteration        int                   `msgpack:"iteration"`
	GuessCount       int                   `msgpack:"guess_count"`
	GuessThreshold   float64               `msgpack:"guess_threshold"`
	ComputeThreshold float64               `msgpack:"compute_threshold"`
	Answers          []GivenAnswer         `msgpack:"answers"`
	Applied          int                   `msgpack:"applied"`
	Stale            bool                  `msgpack:"stale"`
	Rejected         []int64               `msgpack:"rejected"`
	Asked            []int64               `msgpack:"asked"`
	Candidates       []storage.Candidate   `msgpack:"candidates"`
	Questions        []int64               `msgpack:"questions"`
	Entities         []storage.EntityState `msgpack:"entities"`
}

// Snapshot captures the session together with the entity rows of its private copy.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	entities, err := s.gw.EntityStates(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot session %d: %w", s.id, err)
	}
	return Snapshot{
		ID:               s.id,
		Theme:            s.theme,
		Version:          s.version,
		Variant:          s.params.Variant,
		State:            s.state,
		Iteration:        s.iteration,
		GuessCount:       s.guessCount,
		GuessThreshold:   s.guessThreshold,
		ComputeThreshold: s.computeThreshold,
		Answers:          s.Answers(),
		Applied:          s.applied,
		Stale:            s.stale,
		Rejected:         s.Rejected(),
		Asked:            append([]int64(nil), s.asked...),
		Candidates:       append([]storage.Candidate(nil), s.candidates...),
		Questions:        append([]int64(nil), s.questions...),
		Entities:         entities,
	}, nil
}

func (snap Snapshot) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot of session %d: %w", snap.ID, err)
	}
	return data, nil
}

func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Restore rebuilds a session from snap on a fresh copy of the same theme version. Entity
// ratings and used flags are written back as captured and asked questions are marked used, so
// nothing is replayed. The snapshot's variant overrides any WithVariant in opts.
func Restore(ctx context.Context, src storage.Source, snap Snapshot, opts ...Option) (*Session, error) {
	gw, version, err := src.CreateSessionCopy(ctx, snap.Theme, snap.Version, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("restore session %d: %w", snap.ID, err)
	}
	if err := restoreRows(ctx, gw, snap); err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("restore session %d: %w", snap.ID, err)
	}

	params := newParams(append(append([]Option(nil), opts...), WithVariant(snap.Variant)))
	s := newSession(snap.ID, snap.Theme, version, gw, params)
	s.state = snap.State
	s.iteration = snap.Iteration
	s.guessCount = snap.GuessCount
	s.guessThreshold = snap.GuessThreshold
	s.computeThreshold = snap.ComputeThreshold
	s.answers = append([]GivenAnswer(nil), snap.Answers...)
	s.applied = min(snap.Applied, len(s.answers))
	s.stale = snap.Stale
	s.rejected = append([]int64(nil), snap.Rejected...)
	s.asked = append([]int64(nil), snap.Asked...)
	s.candidates = append([]storage.Candidate(nil), snap.Candidates...)
	s.questions = append([]int64(nil), snap.Questions...)

	log.Info().Uint64("session", s.id).Stringer("variant", s.params.Variant).Int("answers", len(s.answers)).
		Int("rejected", len(s.rejected)).Stringer("state", s.state).Msg("session restored")
	return s, nil
}

func restoreRows(ctx context.Context, gw storage.Gateway, snap Snapshot) error {
	updates := make([]storage.RatingUpdate, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		updates = append(updates, storage.RatingUpdate{EntityID: e.ID, Rating: e.Rating})
	}
	if len(updates) > 0 {
		if err := gw.BatchUpdateRatings(ctx, updates); err != nil {
			return err
		}
	}
	for _, e := range snap.Entities {
		if !e.Used {
			continue
		}
		if err := gw.MarkUsed(ctx, storage.EntityKind, e.ID); err != nil {
			return err
		}
	}
	for _, id := range snap.Asked {
		if err := gw.MarkUsed(ctx, storage.QuestionKind, id); err != nil {
			return err
		}
	}
	return nil
}
