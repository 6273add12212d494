package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"guesser/catalog"
	"guesser/failure"
	"guesser/storage"
	"guesser/storage/memory"
)

func smallTheme(version string) catalog.Theme {
	return catalog.Theme{
		Name:    "shapes",
		Version: catalog.MustParseVersion(version),
		Questions: []catalog.Question{
			{Key: "round", Text: "Is it round?"},
			{Key: "corners", Text: "Does it have corners?"},
			{Key: "flat", Text: "Is it flat?"},
		},
		Entities: []catalog.Entity{
			{Name: "Circle", Popularity: 3, Answers: map[string]float64{"round": 1, "corners": -1}},
			{Name: "Square", Popularity: 2, Answers: map[string]float64{"round": -1, "flat": 1}},
			{Name: "Sphere", Popularity: 1, Answers: map[string]float64{"round": 1}},
		},
	}
}

func openStore(t *testing.T, versions ...string) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	for _, v := range versions {
		_, err := store.Import(context.Background(), smallTheme(v))
		require.NoError(t, err, "import version %s", v)
	}
	return store
}

func newSession(t *testing.T, store *Store) storage.Gateway {
	t.Helper()
	gw, _, err := store.CreateSessionCopy(context.Background(), "shapes", catalog.Version{}, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestStoreVersions(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, "1.2", "1.10", "1.2.1")

	themes, err := store.Themes(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"shapes"}, themes)

	versions, err := store.Versions(ctx, "shapes")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, "1.2", versions[0].String())
	require.Equal(t, "1.10", versions[2].String())

	latest, err := store.LatestVersion(ctx, "shapes")
	require.NoError(t, err)
	require.Equal(t, "1.10", latest.String())

	_, err = store.Import(ctx, smallTheme("1.2"))
	require.True(t, failure.Is(err, failure.KindConfiguration), "re-importing a version must fail")
}

func TestCreateSessionCopy(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, "1.0", "2.0")

	t.Run("zero version resolves to latest", func(t *testing.T) {
		gw, version, err := store.CreateSessionCopy(ctx, "shapes", catalog.Version{}, 7)
		require.NoError(t, err)
		defer gw.Close()
		require.Equal(t, "2.0", version.String())
	})

	t.Run("missing theme", func(t *testing.T) {
		_, _, err := store.CreateSessionCopy(ctx, "colors", catalog.Version{}, 7)
		require.True(t, failure.Is(err, failure.KindConfiguration))
	})

	t.Run("missing version", func(t *testing.T) {
		_, _, err := store.CreateSessionCopy(ctx, "shapes", catalog.MustParseVersion("3.0"), 7)
		require.True(t, failure.Is(err, failure.KindConfiguration))
	})

	t.Run("copies are isolated", func(t *testing.T) {
		first := newSession(t, store)
		second := newSession(t, store)

		require.NoError(t, first.MarkUsed(ctx, storage.EntityKind, 1))
		require.NoError(t, first.BatchUpdateRatings(ctx, []storage.RatingUpdate{{EntityID: 2, Rating: 5}}))

		candidates, err := second.RankedCandidates(ctx, 0)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		require.Equal(t, int64(1), candidates[0].ID)
	})
}

func TestSessionQueries(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, "1.0")

	t.Run("ranked candidates", func(t *testing.T) {
		gw := newSession(t, store)
		candidates, err := gw.RankedCandidates(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, []storage.Candidate{
			{ID: 1, Rating: 1},
			{ID: 2, Rating: 2.0 / 3.0},
			{ID: 3, Rating: 1.0 / 3.0},
		}, candidates)

		candidates, err = gw.RankedCandidates(ctx, 0.5)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
	})

	t.Run("ranked questions", func(t *testing.T) {
		gw := newSession(t, store)
		ids, err := gw.RankedQuestions(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, []int64{1, 2, 3}, ids)

		require.NoError(t, gw.MarkUsed(ctx, storage.QuestionKind, 1))
		ids, err = gw.RankedQuestions(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, []int64{2, 3}, ids)

		// Only Circle qualifies, and it never answered "flat".
		ids, err = gw.RankedQuestions(ctx, 0.9)
		require.NoError(t, err)
		require.Equal(t, []int64{2}, ids)

		// A used entity never counts, however high its rating.
		require.NoError(t, gw.MarkUsed(ctx, storage.EntityKind, 1))
		ids, err = gw.RankedQuestions(ctx, 0.9)
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("entities answering", func(t *testing.T) {
		gw := newSession(t, store)
		respondents, err := gw.EntitiesAnswering(ctx, 1)
		require.NoError(t, err)
		require.Len(t, respondents, 3)
		require.Equal(t, storage.Respondent{EntityID: 2, Value: -1, Rating: 2.0 / 3.0}, respondents[1])
	})

	t.Run("entities answering many", func(t *testing.T) {
		gw := newSession(t, store)
		require.NoError(t, gw.MarkUsed(ctx, storage.EntityKind, 3))

		profiles, err := gw.EntitiesAnsweringMany(ctx, []int64{1, 3})
		require.NoError(t, err)
		require.Len(t, profiles, 2, "used entities are excluded")
		require.Equal(t, int64(1), profiles[0].EntityID)
		require.Equal(t, []storage.AnswerValue{{QuestionID: 1, Value: 1}}, profiles[0].Answers)
		require.Equal(t, []storage.AnswerValue{{QuestionID: 1, Value: -1}, {QuestionID: 3, Value: 1}}, profiles[1].Answers)

		profiles, err = gw.EntitiesAnsweringMany(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, profiles)
	})

	t.Run("min max ignores excluded entities", func(t *testing.T) {
		gw := newSession(t, store)
		require.NoError(t, gw.BatchUpdateRatings(ctx, []storage.RatingUpdate{
			{EntityID: 1, Rating: storage.ExclusionRating},
			{EntityID: 2, Rating: 4},
		}))
		maximum, minimum, ok, err := gw.MinMaxRating(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 4.0, maximum)
		require.InDelta(t, 1.0/3.0, minimum, 1e-9)

		require.NoError(t, gw.MarkUsed(ctx, storage.EntityKind, 2))
		require.NoError(t, gw.MarkUsed(ctx, storage.EntityKind, 3))
		_, _, ok, err = gw.MinMaxRating(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("entity states", func(t *testing.T) {
		gw := newSession(t, store)
		require.NoError(t, gw.BatchUpdateRatings(ctx, []storage.RatingUpdate{{EntityID: 2, Rating: -1.5}}))
		require.NoError(t, gw.MarkUsed(ctx, storage.EntityKind, 3))

		states, err := gw.EntityStates(ctx)
		require.NoError(t, err)
		require.Len(t, states, 3)
		require.Equal(t, storage.EntityState{ID: 1, Rating: 1}, states[0])
		require.Equal(t, storage.EntityState{ID: 2, Rating: -1.5}, states[1])
		require.Equal(t, int64(3), states[2].ID)
		require.True(t, states[2].Used)
	})

	t.Run("names and texts", func(t *testing.T) {
		gw := newSession(t, store)
		name, err := gw.EntityName(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, "Square", name)

		text, err := gw.QuestionText(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, "Is it flat?", text)

		_, err = gw.EntityName(ctx, 42)
		require.True(t, failure.Is(err, failure.KindStorage))
	})
}

func TestProfiles(t *testing.T) {
	store := openStore(t, "1.0")
	profiles, err := store.Profiles(context.Background(), "shapes", catalog.MustParseVersion("1.0"))
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	require.Equal(t, map[int64]float64{1: 1}, profiles[3])
}

func TestMatchesMemoryGateway(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, "1.0")
	db := newSession(t, store)
	mem := memory.NewSession(smallTheme("1.0"))

	steps := []func(gw storage.Gateway) error{
		func(gw storage.Gateway) error { return gw.MarkUsed(ctx, storage.QuestionKind, 2) },
		func(gw storage.Gateway) error {
			return gw.BatchUpdateRatings(ctx, []storage.RatingUpdate{{EntityID: 3, Rating: 2}, {EntityID: 1, Rating: -1}})
		},
		func(gw storage.Gateway) error { return gw.MarkUsed(ctx, storage.EntityKind, 2) },
	}
	for i, step := range steps {
		require.NoError(t, step(db))
		require.NoError(t, step(mem))

		for _, threshold := range []float64{-5, 0, 1} {
			want, err := mem.RankedCandidates(ctx, threshold)
			require.NoError(t, err)
			got, err := db.RankedCandidates(ctx, threshold)
			require.NoError(t, err)
			require.Equal(t, want, got, "candidates after step %d at %v", i, threshold)

			wantQ, err := mem.RankedQuestions(ctx, threshold)
			require.NoError(t, err)
			gotQ, err := db.RankedQuestions(ctx, threshold)
			require.NoError(t, err)
			require.Equal(t, wantQ, gotQ, "questions after step %d at %v", i, threshold)
		}

		wantRows, err := mem.EntityStates(ctx)
		require.NoError(t, err)
		gotRows, err := db.EntityStates(ctx)
		require.NoError(t, err)
		require.Equal(t, wantRows, gotRows, "entity rows after step %d", i)
	}
}
