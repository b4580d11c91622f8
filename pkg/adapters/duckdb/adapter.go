// Package duckdb provides a DuckDB adapter. DuckDB serves as a local
// target for smoke sessions that need no server.
package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/leapstack-labs/leapfuzz/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	if err := a.Open(ctx, "duckdb", path, cfg); err != nil {
		return err
	}

	for _, stmt := range setupStatements(params) {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("failed to configure duckdb: %w", err)
		}
	}
	return nil
}

// setupStatements returns the statements applying params, in a stable
// order.
func setupStatements(p *Params) []string {
	var out []string
	for _, ext := range p.Extensions {
		out = append(out, "INSTALL "+ext, "LOAD "+ext)
	}
	for _, name := range slices.Sorted(maps.Keys(p.Settings)) {
		out = append(out, fmt.Sprintf("SET %s = '%s'", name, p.Settings[name]))
	}
	return out
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
