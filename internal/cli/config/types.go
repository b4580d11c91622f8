// Package config loads the leapfuzz CLI configuration.
//
// The shared connection type (TargetConfig) lives in internal/config and is
// re-exported here so commands need a single import.
package config

import (
	"time"

	sharedcfg "github.com/leapstack-labs/leapfuzz/internal/config"
	"github.com/leapstack-labs/leapfuzz/internal/engine"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = sharedcfg.TargetConfig

// GeneratorConfig bounds the objects a session creates.
type GeneratorConfig struct {
	MaxDatabases    uint32 `koanf:"max_databases"`
	MaxTables       uint32 `koanf:"max_tables"`
	MaxViews        uint32 `koanf:"max_views"`
	MaxDictionaries uint32 `koanf:"max_dictionaries"`
	MaxFunctions    uint32 `koanf:"max_functions"`
	MaxColumns      uint32 `koanf:"max_columns"`
	MinInsertRows   uint32 `koanf:"min_insert_rows"`
	MaxInsertRows   uint32 `koanf:"max_insert_rows"`
	MaxDepth        uint32 `koanf:"max_depth"`
	MaxWidth        uint32 `koanf:"max_width"`
	Replicated      bool   `koanf:"replicated"`
	Shared          bool   `koanf:"shared"`
	BackupPath      string `koanf:"backup_path"`
}

// OracleConfig tunes the oracle protocols.
type OracleConfig struct {
	engine.Weights `koanf:",squash"`
	// FilePath is where dump/reload exports go, under the server's user
	// files directory.
	FilePath    string `koanf:"file_path"`
	MaxSettings uint32 `koanf:"max_settings"`
}

// Config holds all CLI configuration options.
type Config struct {
	Seed          uint64                   `koanf:"seed"`
	Steps         int64                    `koanf:"steps"`
	TimeToRun     time.Duration            `koanf:"time_to_run"`
	StatePath     string                   `koanf:"state_path"`
	Verbose       bool                     `koanf:"verbose"`
	OutputFormat  string                   `koanf:"output"`
	ProgressEvery int64                    `koanf:"progress_every"`
	Target        *TargetConfig            `koanf:"target"`
	Peers         map[string]*TargetConfig `koanf:"peers"`
	MinIO         engine.MinIOConfig       `koanf:"minio"`
	Generator     GeneratorConfig          `koanf:"generator"`
	Clusters      []string                 `koanf:"clusters"`
	Disks         []string                 `koanf:"disks"`
	Oracles       OracleConfig             `koanf:"oracles"`
	SettingsFile  string                   `koanf:"settings_file"`
}

// Default configuration values.
const (
	DefaultStateFile     = ".leapfuzz/state.db"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSteps         = 10000
	DefaultProgressEvery = 1000
	DefaultTargetType    = "clickhouse"
	DefaultTargetHost    = "localhost"
)
