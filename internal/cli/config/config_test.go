package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/internal/engine"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/sqlite"
)

// inTempDir runs the test in an empty directory so no leapfuzz.yaml is
// picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	ResetConfig()
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "leapfuzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("seed", 0, "")
	flags.Int64("steps", 0, "")
	flags.Duration("time-to-run", 0, "")
	flags.String("state", "", "")
	flags.Bool("verbose", false, "")
	flags.String("output", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Empty(t, GetConfigFileUsed())
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, int64(DefaultSteps), cfg.Steps)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, engine.DefaultWeights(), cfg.Oracles.Weights)
	assert.Equal(t, "leapfuzz", cfg.Oracles.FilePath)

	require.NotNil(t, cfg.Target)
	assert.Equal(t, "clickhouse", cfg.Target.Type)
	assert.Equal(t, "localhost", cfg.Target.Host)
	assert.Equal(t, 9000, cfg.Target.Port)
	assert.Equal(t, "default", cfg.Target.User)

	def := generator.DefaultConfig()
	assert.Equal(t, def.MaxTables, cfg.Generator.MaxTables)
	assert.Equal(t, def.MaxInsertRows, cfg.Generator.MaxInsertRows)
}

func TestLoadConfig_File(t *testing.T) {
	dir := inTempDir(t)
	t.Setenv("FUZZ_PG_PASSWORD", "s3cret")
	path := writeConfig(t, dir, `
seed: 1234
steps: 500
time_to_run: 5m
state_path: state/fuzz.db
target:
  type: clickhouse
  host: ch.internal
  options:
    server_address: clickhouse:9000
peers:
  postgres:
    type: postgres
    host: pg.internal
    user: fuzz
    password: ${FUZZ_PG_PASSWORD}
    database: fuzz
  sqlite:
    type: sqlite
    path: /var/lib/clickhouse/user_files/peer.db
minio:
  endpoint: minio:9000
  bucket: backups
generator:
  max_tables: 3
  max_insert_rows: 20
oracles:
  correctness: 5
  peer: 0
clusters: [c1, c2]
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, int64(500), cfg.Steps)
	assert.Equal(t, 5*time.Minute, cfg.TimeToRun)
	assert.Equal(t, filepath.Join(dir, "state", "fuzz.db"), cfg.StatePath)
	assert.Equal(t, "ch.internal", cfg.Target.Host)
	assert.Equal(t, []string{"c1", "c2"}, cfg.Clusters)

	assert.Equal(t, []string{"postgres", "sqlite"}, cfg.PeerNames())
	assert.Equal(t, "s3cret", cfg.Peers["postgres"].Password)
	assert.Equal(t, 5432, cfg.Peers["postgres"].Port)

	assert.Equal(t, uint32(3), cfg.Generator.MaxTables)
	assert.Equal(t, uint32(20), cfg.Generator.MaxInsertRows)
	// unset keys keep their defaults
	assert.Equal(t, generator.DefaultConfig().MaxColumns, cfg.Generator.MaxColumns)
	assert.Equal(t, uint32(5), cfg.Oracles.Correctness)
	assert.Zero(t, cfg.Oracles.Peer)
	assert.Equal(t, engine.DefaultWeights().Settings, cfg.Oracles.Settings)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := inTempDir(t)
	writeConfig(t, dir, `
seed: 1
steps: 100
target:
  type: clickhouse
  host: from-file
`)
	t.Setenv("LEAPFUZZ_SEED", "2")
	t.Setenv("LEAPFUZZ_TARGET__HOST", "from-env")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--seed", "3", "--state", "custom.db"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "leapfuzz.yaml", GetConfigFileUsed())
	assert.Equal(t, uint64(3), cfg.Seed, "flag beats env and file")
	assert.Equal(t, "from-env", cfg.Target.Host, "env beats file")
	assert.Equal(t, int64(100), cfg.Steps, "file beats defaults")
	assert.Equal(t, "custom.db", cfg.StatePath, "--state maps to state_path")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		field     string
		errSubstr string
	}{
		{
			name:      "unknown peer kind",
			content:   "peers:\n  oracle:\n    type: postgres\n",
			field:     "peers.oracle",
			errSubstr: "unknown peer",
		},
		{
			name:      "insert rows inverted",
			content:   "generator:\n  min_insert_rows: 50\n  max_insert_rows: 10\n",
			field:     "generator.min_insert_rows",
			errSubstr: "exceeds max_insert_rows",
		},
		{
			name:      "zero tables",
			content:   "generator:\n  max_tables: 0\n",
			field:     "generator.max_tables",
			errSubstr: "greater than zero",
		},
		{
			name:      "bucket missing",
			content:   "minio:\n  endpoint: minio:9000\n",
			field:     "minio.bucket",
			errSubstr: "is required",
		},
		{
			name:      "unknown target type",
			content:   "target:\n  type: snowflake\n",
			errSubstr: "unknown adapter type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := inTempDir(t)
			path := writeConfig(t, dir, tt.content)

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
			if tt.field != "" {
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	inTempDir(t)
	_, err := LoadConfig("missing.yaml", nil)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestConfig_SessionConfig(t *testing.T) {
	dir := inTempDir(t)
	settingsPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settingsPath, []byte("disable:\n  - max_threads\n"), 0o600))
	path := writeConfig(t, dir, `
target:
  type: clickhouse
  host: ch
  options:
    server_address: clickhouse-server:9000
peers:
  sqlite:
    type: sqlite
  mysql:
    type: mysql
minio:
  endpoint: minio:9000
  bucket: fuzz
  access_key: key
disks: [default, s3]
generator:
  max_depth: 4
  backup_path: bk
oracles:
  max_settings: 2
settings_file: `+settingsPath+`
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	sc, err := cfg.SessionConfig(77)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), sc.Seed)
	assert.NotNil(t, sc.Settings)
	assert.Equal(t, uint32(2), sc.Oracle.MaxSettings)

	gen := sc.Generator
	assert.Equal(t, []sqltree.PeerKind{sqltree.PeerMySQL, sqltree.PeerSQLite}, gen.Peers)
	assert.Equal(t, "clickhouse-server:9000", gen.RemoteHost)
	assert.Equal(t, "http://minio:9000/fuzz", gen.S3Endpoint)
	assert.Equal(t, "key", gen.S3AccessKey)
	assert.Equal(t, []string{"default", "s3"}, gen.Disks)
	assert.Equal(t, uint32(4), gen.Expr.MaxDepth)
	assert.Equal(t, "bk", gen.BackupPath)
	assert.Equal(t, generator.DefaultConfig().SystemTables, gen.SystemTables)

	assert.Len(t, cfg.PeerAdapterConfigs(), 2)
	assert.Equal(t, "mysql", cfg.PeerAdapterConfigs()["mysql"].Type)
}

func TestConfig_SessionConfigBadSettingsFile(t *testing.T) {
	inTempDir(t)
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	cfg.SettingsFile = "nope.yaml"

	_, err = cfg.SessionConfig(1)
	assert.ErrorContains(t, err, "failed to load settings file")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LF_TEST_USER", "fuzzer")
	tests := []struct {
		in, want string
	}{
		{"${LF_TEST_USER}", "fuzzer"},
		{"prefix-${LF_TEST_USER}-suffix", "prefix-fuzzer-suffix"},
		{"${LF_TEST_UNSET}", "${LF_TEST_UNSET}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}
