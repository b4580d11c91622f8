package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapfuzz/internal/cli/config"
	"github.com/leapstack-labs/leapfuzz/internal/cli/output"
	"github.com/leapstack-labs/leapfuzz/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the configuration the
// root command loaded, loading it directly when the command runs on its own.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	mode := output.Mode(cfg.OutputFormat)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// OpenStore opens the state database. The returned cleanup closes it.
func (c *CommandContext) OpenStore() (state.Store, func(), error) {
	if err := ensureStateDir(c.Cfg.StatePath); err != nil {
		return nil, nil, err
	}
	store := state.NewSQLiteStore(c.Logger)
	if err := store.Open(c.Cfg.StatePath); err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// Seed returns the configured seed, or one drawn from the clock when the
// seed is zero.
func (c *CommandContext) Seed() uint64 {
	return resolveSeed(c.Cfg.Seed)
}

func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// getConfig returns the configuration stored by the root command.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cmd.Context() != nil {
		if cfg := config.GetConfig(cmd.Context()); cfg != nil {
			return cfg, nil
		}
	}
	return config.LoadConfig("", nil)
}

func ensureStateDir(statePath string) error {
	if statePath == ":memory:" {
		return nil
	}
	stateDir := filepath.Dir(statePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return nil
}
