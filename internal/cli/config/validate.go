package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PeerNames returns the configured peer names in ascending order.
func (c *Config) PeerNames() []string {
	names := make([]string, 0, len(c.Peers))
	for name := range c.Peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Target == nil {
		errs = append(errs, &ValidationError{Field: "target", Message: "is required"})
	} else if err := c.Target.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}

	for _, name := range c.PeerNames() {
		if _, ok := sqltree.ParsePeerKind(name); !ok {
			errs = append(errs, &ValidationError{Field: "peers." + name,
				Message: "unknown peer, expected one of clickhouse, mysql, postgres, sqlite"})
			continue
		}
		peer := c.Peers[name]
		if peer == nil {
			errs = append(errs, &ValidationError{Field: "peers." + name, Message: "is empty"})
			continue
		}
		if err := peer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("peers.%s: %w", name, err))
		}
	}

	g := c.Generator
	for _, f := range []struct {
		field string
		value uint32
	}{
		{"generator.max_tables", g.MaxTables},
		{"generator.max_columns", g.MaxColumns},
		{"generator.max_insert_rows", g.MaxInsertRows},
	} {
		if f.value == 0 {
			errs = append(errs, &ValidationError{Field: f.field, Message: "must be greater than zero"})
		}
	}
	if g.MinInsertRows > g.MaxInsertRows {
		errs = append(errs, &ValidationError{Field: "generator.min_insert_rows",
			Message: fmt.Sprintf("%d exceeds max_insert_rows %d", g.MinInsertRows, g.MaxInsertRows)})
	}

	if c.Steps < 0 {
		errs = append(errs, &ValidationError{Field: "steps", Message: "must not be negative"})
	}
	if c.TimeToRun < 0 {
		errs = append(errs, &ValidationError{Field: "time_to_run", Message: "must not be negative"})
	}
	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		errs = append(errs, &ValidationError{Field: "minio.bucket", Message: "is required with minio.endpoint"})
	}
	return errors.Join(errs...)
}
