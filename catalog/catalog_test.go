package catalog

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"guesser/failure"
)

func TestParseVersion(t *testing.T) {
	t.Run("major and minor", func(t *testing.T) {
		v, err := ParseVersion("1.0")
		require.NoError(t, err)
		require.Equal(t, Version{Major: 1}, v)
		require.Equal(t, "1.0", v.String())
	})

	t.Run("with micro part", func(t *testing.T) {
		v, err := ParseVersion("2.3.4")
		require.NoError(t, err)
		require.Equal(t, Version{Major: 2, Minor: 3, Micro: 4, HasMicro: true}, v)
		require.Equal(t, "2.3.4", v.String())
	})

	t.Run("rejects malformed strings", func(t *testing.T) {
		for _, s := range []string{"", "1", "1.2.3.4", "a.b", "0.0", "-1.2"} {
			_, err := ParseVersion(s)
			require.True(t, failure.Is(err, failure.KindConfiguration), "%q should be a configuration error", s)
		}
	})
}

func TestVersionOrdering(t *testing.T) {
	versions := []Version{
		MustParseVersion("1.10"),
		MustParseVersion("1.2"),
		MustParseVersion("1.2.1"),
		MustParseVersion("0.9"),
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })

	got := []string{}
	for _, v := range versions {
		got = append(got, v.String())
	}
	require.Equal(t, []string{"0.9", "1.2", "1.2.1", "1.10"}, got, "Versions should order numerically")
	require.Equal(t, 0, MustParseVersion("1.2").Compare(MustParseVersion("1.2.0")))
}

func TestLoadTheme(t *testing.T) {
	theme, err := LoadTheme(filepath.Join("testdata", "animals.toml"))
	require.NoError(t, err)

	require.Equal(t, "animals", theme.Name)
	require.Equal(t, MustParseVersion("1.0"), theme.Version)
	require.Len(t, theme.Questions, 10)
	require.Len(t, theme.Entities, 8)
	require.Equal(t, int64(1), theme.QuestionIndex()["mammal"])
	require.InDelta(t, 10.0/8.0, theme.BaseRating(theme.Entities[1]), 1e-9, "Base rating should be popularity over entity count")
}

func TestThemeValidate(t *testing.T) {
	valid := func() Theme {
		return Theme{
			Name:      "tiny",
			Version:   MustParseVersion("1.0"),
			Questions: []Question{{Key: "q", Text: "Q?"}},
			Entities:  []Entity{{Name: "A", Answers: map[string]float64{"q": 1}}},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*Theme){
		"missing name":        func(t *Theme) { t.Name = "" },
		"path in name":        func(t *Theme) { t.Name = "../etc" },
		"missing version":     func(t *Theme) { t.Version = Version{} },
		"unknown question":    func(t *Theme) { t.Entities[0].Answers["nope"] = 1 },
		"zero answer":         func(t *Theme) { t.Entities[0].Answers["q"] = 0 },
		"out of range answer": func(t *Theme) { t.Entities[0].Answers["q"] = 1.5 },
		"duplicate entity":    func(t *Theme) { t.Entities = append(t.Entities, Entity{Name: "A"}) },
		"duplicate question":  func(t *Theme) { t.Questions = append(t.Questions, Question{Key: "q", Text: "again"}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			theme := valid()
			mutate(&theme)
			require.True(t, failure.Is(theme.Validate(), failure.KindConfiguration))
		})
	}
}
