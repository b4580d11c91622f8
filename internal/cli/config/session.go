package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/oracle"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// PeerKinds returns the kinds of the configured peers in ascending order.
func (c *Config) PeerKinds() []sqltree.PeerKind {
	var kinds []sqltree.PeerKind
	for _, name := range c.PeerNames() {
		if kind, ok := sqltree.ParsePeerKind(name); ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// PeerAdapterConfigs returns the adapter configuration of every peer keyed
// by peer name.
func (c *Config) PeerAdapterConfigs() map[string]core.AdapterConfig {
	out := make(map[string]core.AdapterConfig, len(c.Peers))
	for name, p := range c.Peers {
		if p != nil {
			out[name] = p.ToAdapterConfig()
		}
	}
	return out
}

// remoteHost is the address the server reaches itself at for remote()
// inserts.
func (c *Config) remoteHost() string {
	if c.Target == nil || !strings.EqualFold(c.Target.Type, "clickhouse") {
		return generator.DefaultConfig().RemoteHost
	}
	return adapter.ServerAddress(c.Target.ToAdapterConfig(), 9000)
}

// GeneratorConfig returns the generator configuration with peers only; the
// caller sets the backup bucket once it has been probed.
func (c *Config) GeneratorConfig() generator.Config {
	g := c.Generator
	gen := generator.DefaultConfig()
	gen.MaxDatabases = g.MaxDatabases
	gen.MaxTables = g.MaxTables
	gen.MaxViews = g.MaxViews
	gen.MaxDictionaries = g.MaxDictionaries
	gen.MaxFunctions = g.MaxFunctions
	gen.MaxColumns = g.MaxColumns
	gen.MinInsertRows = g.MinInsertRows
	gen.MaxInsertRows = g.MaxInsertRows
	gen.Expr = expr.Limits{MaxDepth: g.MaxDepth, MaxWidth: g.MaxWidth}
	gen.Replicated = g.Replicated
	gen.Shared = g.Shared
	if g.BackupPath != "" {
		gen.BackupPath = g.BackupPath
	}
	gen.Clusters = c.Clusters
	gen.Disks = c.Disks
	gen.Peers = c.PeerKinds()
	gen.RemoteHost = c.remoteHost()
	if c.MinIO.Enabled() {
		gen.S3Endpoint = c.MinIO.URL()
		gen.S3AccessKey = c.MinIO.AccessKey
		gen.S3SecretKey = c.MinIO.SecretKey
	}
	return gen
}

// SessionConfig builds the session configuration for seed, loading the
// settings overrides file when one is configured.
func (c *Config) SessionConfig(seed uint64) (engine.SessionConfig, error) {
	src := settings.Default()
	if c.SettingsFile != "" {
		o, err := settings.LoadOverrides(c.SettingsFile)
		if err != nil {
			return engine.SessionConfig{}, fmt.Errorf("failed to load settings file: %w", err)
		}
		if src, err = src.Apply(o); err != nil {
			return engine.SessionConfig{}, fmt.Errorf("failed to apply settings file: %w", err)
		}
	}
	return engine.SessionConfig{
		Seed:      seed,
		Generator: c.GeneratorConfig(),
		Oracle:    oracle.Config{FilePath: c.Oracles.FilePath, MaxSettings: c.Oracles.MaxSettings},
		Weights:   c.Oracles.Weights,
		Settings:  src,
	}, nil
}
