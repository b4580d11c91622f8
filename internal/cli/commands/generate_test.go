package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/cli/testutil"
)

type generateReport struct {
	Seed       uint64               `json:"seed"`
	Statements []generatedStatement `json:"statements"`
}

func TestGenerateCommand_JSON(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeJSON)
	cfg.Seed = 1234

	generateOnce := func() generateReport {
		out, err := runCommand(t, cfg, NewGenerateCommand, "-n", "25")
		require.NoError(t, err)
		var report generateReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		return report
	}

	first := generateOnce()
	assert.Equal(t, uint64(1234), first.Seed)
	require.Len(t, first.Statements, 25)
	for i, st := range first.Statements {
		assert.NotEmpty(t, st.SQL, "statement %d", i)
		if i > 0 {
			assert.Greater(t, st.Step, first.Statements[i-1].Step)
		}
	}

	assert.Equal(t, first, generateOnce(), "same seed prints the same statements")
}

func TestGenerateCommand_Text(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeText)
	cfg.Seed = 5

	out, err := runCommand(t, cfg, NewGenerateCommand, "--count", "3")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "-- seed 5\n"), "got %q", out)
	assert.Equal(t, 3, strings.Count(out, ";\n"))
}

func TestGenerate_SeedsDiffer(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeJSON)

	a, err := cfg.SessionConfig(1)
	require.NoError(t, err)
	b, err := cfg.SessionConfig(2)
	require.NoError(t, err)

	assert.NotEqual(t, generate(t.Context(), a, 10), generate(t.Context(), b, 10))
}
