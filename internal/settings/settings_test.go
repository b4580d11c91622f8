package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CategoriesPopulated(t *testing.T) {
	src := Default()
	for c := range categoryNames {
		assert.True(t, src.Has(c), "category %s", c)
	}
}

func TestSource_PickDistinctAndDeterministic(t *testing.T) {
	src := Default()

	a := src.Pick(random.New(3), Server, 5)
	b := src.Pick(random.New(3), Server, 5)
	assert.Equal(t, a, b)
	require.NotEmpty(t, a)
	assert.LessOrEqual(t, len(a), 5)

	seen := map[string]bool{}
	for _, v := range a {
		assert.False(t, seen[v.Name], "duplicate %s", v.Name)
		seen[v.Name] = true
		assert.NotEmpty(t, v.Value)
	}
}

func TestSource_VaryKeepsNames(t *testing.T) {
	src := Default()
	rng := random.New(21)
	first := src.Pick(rng, ResultNeutral, 4)
	second := src.Vary(rng, ResultNeutral, first)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
	}
}

func TestSource_Lookup(t *testing.T) {
	src := Default()
	st, ok := src.Lookup(ResultNeutral, "max_threads")
	require.True(t, ok)
	assert.Equal(t, "max_threads", st.Name)

	_, ok = src.Lookup(ResultNeutral, "mutations_sync")
	assert.False(t, ok, "mutations_sync is not result neutral")
}

func TestApply_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `disable:
  - compile_expressions
values:
  result_neutral:
    max_threads: ["3"]
    custom_setting: ["'x'"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	o, err := LoadOverrides(path)
	require.NoError(t, err)

	src, err := Default().Apply(o)
	require.NoError(t, err)

	_, ok := src.Lookup(ResultNeutral, "compile_expressions")
	assert.False(t, ok)
	_, ok = src.Lookup(Server, "compile_expressions")
	assert.False(t, ok)

	st, ok := src.Lookup(ResultNeutral, "max_threads")
	require.True(t, ok)
	assert.Equal(t, "3", st.Generate(random.New(1)))

	_, ok = src.Lookup(ResultNeutral, "custom_setting")
	assert.True(t, ok)

	_, ok = Default().Lookup(ResultNeutral, "compile_expressions")
	assert.True(t, ok, "defaults must be untouched")
}

func TestApply_UnknownCategory(t *testing.T) {
	_, err := Default().Apply(&Overrides{Values: map[string]map[string][]string{"nope": {"a": {"1"}}}})
	var target *UnknownCategoryError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "nope", target.Name)
}
