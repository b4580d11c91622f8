package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/internal/cli/config"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/cli/testutil"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/clickhouse"
)

// runCommand executes the command built by newCmd with cfg in its context
// and returns standard output.
func runCommand(t *testing.T, cfg *config.Config, newCmd func() *cobra.Command, args ...string) (string, error) {
	t.Helper()
	cmd := newCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.Context(cfg))
	return out.String(), err
}

func TestRunCommand_Offline(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeJSON)
	cfg.Seed = 42
	cfg.Steps = 50

	out, err := runCommand(t, cfg, NewRunCommand, "--offline")
	require.NoError(t, err)

	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.Run.ID)
	assert.Equal(t, uint64(42), report.Run.Seed)
	assert.Equal(t, "offline", report.Run.Target)
	assert.Equal(t, "completed", report.Run.Status)
	assert.Positive(t, report.Run.Statements)
	assert.LessOrEqual(t, report.Run.Statements, int64(50))
	assert.Zero(t, report.Run.Failures, "offline statements always succeed")
	assert.Empty(t, report.Findings)
	assert.FileExists(t, cfg.StatePath)
}

func TestRunCommand_Markdown(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeMarkdown)
	cfg.Seed = 7
	cfg.Steps = 10

	out, err := runCommand(t, cfg, NewRunCommand, "--offline")
	require.NoError(t, err)

	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Run ")
	assert.Contains(t, out, "✓ run completed")
	assert.Contains(t, out, "seed=7")
	assert.Contains(t, out, "no findings")
}

func TestRunsAndFindingsCommands(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeJSON)
	cfg.Steps = 5
	for _, seed := range []uint64{1, 2} {
		cfg.Seed = seed
		_, err := runCommand(t, cfg, NewRunCommand, "--offline")
		require.NoError(t, err)
	}

	out, err := runCommand(t, cfg, NewRunsCommand)
	require.NoError(t, err)
	var runs []runView
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, uint64(2), runs[0].Seed, "newest first")
	assert.Equal(t, uint64(1), runs[1].Seed)

	out, err = runCommand(t, cfg, NewRunsCommand, "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	assert.Len(t, runs, 1)

	out, err = runCommand(t, cfg, NewFindingsCommand)
	require.NoError(t, err)
	var report runReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint64(2), report.Run.Seed, "latest run by default")

	first := runs[0].ID
	out, err = runCommand(t, cfg, NewFindingsCommand, first)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, first, report.Run.ID)

	_, err = runCommand(t, cfg, NewFindingsCommand, "missing")
	assert.ErrorContains(t, err, "run not found")
}

func TestRunsCommand_Markdown(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeMarkdown)

	out, err := runCommand(t, cfg, NewRunsCommand)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")

	cfg.Seed = 99
	cfg.Steps = 3
	_, err = runCommand(t, cfg, NewRunCommand, "--offline")
	require.NoError(t, err)

	out, err = runCommand(t, cfg, NewRunsCommand)
	require.NoError(t, err)
	assert.Contains(t, out, "| Run |")
	assert.Contains(t, out, "| 99 |")
	assert.Contains(t, out, "offline")
}

func TestFindingsCommand_NoRuns(t *testing.T) {
	cfg := testutil.LoadTestConfig(t, output.ModeJSON)

	_, err := runCommand(t, cfg, NewFindingsCommand)
	assert.ErrorContains(t, err, "no runs recorded")
}
