package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/internal/cli"
	"github.com/leapstack-labs/leapfuzz/internal/cli/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "leapfuzz v")
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"run", "generate", "shell", "runs", "findings", "completion", "--seed", "--time-to-run"} {
		assert.Contains(t, out, want)
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "leapfuzz")

	_, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestGenerateThroughRoot(t *testing.T) {
	inTempDir(t)

	out, err := execute(t, "generate", "--seed", "77", "-n", "4", "-o", "json")
	require.NoError(t, err)

	var report struct {
		Seed       uint64 `json:"seed"`
		Statements []struct {
			SQL string `json:"sql"`
		} `json:"statements"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint64(77), report.Seed)
	assert.Len(t, report.Statements, 4)
}

func TestRunOfflineThroughRoot(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapfuzz.yaml"), []byte(`
seed: 3
steps: 20
state_path: fuzz/state.db
output: markdown
`), 0o600))

	out, err := execute(t, "run", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "run completed")
	assert.FileExists(t, filepath.Join(dir, "fuzz", "state.db"))

	out, err = execute(t, "runs")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "| offline |"))
}

func TestInvalidConfig(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapfuzz.yaml"), []byte("generator:\n  max_tables: 0\n"), 0o600))

	_, err := execute(t, "generate")
	assert.ErrorContains(t, err, "max_tables")
}
