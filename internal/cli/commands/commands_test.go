package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	// seed, steps and time-to-run are persistent flags on root, not local
	for _, flag := range []string{"offline", "fail-on-finding"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewGenerateCommand(t *testing.T) {
	cmd := NewGenerateCommand()

	assert.Equal(t, "generate", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Equal(t, []string{"gen"}, cmd.Aliases)
	assert.NotNil(t, cmd.Flags().Lookup("count"))
	assert.Equal(t, "n", cmd.Flags().Lookup("count").Shorthand)
}

func TestNewShellCommand(t *testing.T) {
	cmd := NewShellCommand()

	assert.Equal(t, "shell", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("offline"))
}

func TestNewRunsCommand(t *testing.T) {
	cmd := NewRunsCommand()

	assert.Equal(t, "runs", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Equal(t, "20", cmd.Flags().Lookup("limit").DefValue)
}

func TestNewFindingsCommand(t *testing.T) {
	cmd := NewFindingsCommand()

	assert.Equal(t, "findings [run-id]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}), "at most one run id")
	assert.NoError(t, cmd.Args(cmd, nil))
}
