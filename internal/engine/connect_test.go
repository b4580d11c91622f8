package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/internal/testutil"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

func TestConnect(t *testing.T) {
	ctx := context.Background()
	conns, err := Connect(ctx,
		core.AdapterConfig{Type: "sqlite", Path: ":memory:"},
		map[string]core.AdapterConfig{
			"sqlite": {Type: "sqlite", Path: filepath.Join(t.TempDir(), "peer.db")},
		},
		testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, conns.Close()) }()

	assert.Equal(t, "sqlite", conns.Target.Name())
	assert.Equal(t, []sqltree.PeerKind{sqltree.PeerSQLite}, conns.PeerKinds())
	require.NoError(t, conns.Peers[sqltree.PeerSQLite].Exec(ctx, "CREATE TABLE t0 (c0 INTEGER)"))
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name      string
		target    core.AdapterConfig
		peers     map[string]core.AdapterConfig
		errSubstr string
	}{
		{
			name:      "unknown target type",
			target:    core.AdapterConfig{Type: "snowflake"},
			errSubstr: "target:",
		},
		{
			name:      "unknown peer kind",
			target:    core.AdapterConfig{Type: "sqlite"},
			peers:     map[string]core.AdapterConfig{"oracle": {Type: "sqlite"}},
			errSubstr: `unknown peer "oracle"`,
		},
		{
			name:      "unregistered peer adapter",
			target:    core.AdapterConfig{Type: "sqlite"},
			peers:     map[string]core.AdapterConfig{"postgres": {Type: "postgres"}},
			errSubstr: "peer postgres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns, err := Connect(context.Background(), tt.target, tt.peers, nil)
			require.Error(t, err)
			assert.Nil(t, conns)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestMinIOConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MinIOConfig
		enabled bool
		url     string
	}{
		{name: "empty", cfg: MinIOConfig{}, url: "http:///"},
		{name: "no bucket", cfg: MinIOConfig{Endpoint: "minio:9000"}, url: "http://minio:9000/"},
		{
			name:    "plain",
			cfg:     MinIOConfig{Endpoint: "minio:9000", Bucket: "fuzz"},
			enabled: true,
			url:     "http://minio:9000/fuzz",
		},
		{
			name:    "secure",
			cfg:     MinIOConfig{Endpoint: "s3.local", Bucket: "b", Secure: true},
			enabled: true,
			url:     "https://s3.local/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enabled, tt.cfg.Enabled())
			assert.Equal(t, tt.url, tt.cfg.URL())
		})
	}
}

func TestProbeBucket_Disabled(t *testing.T) {
	ok, err := ProbeBucket(context.Background(), MinIOConfig{Endpoint: "minio:9000"})
	require.NoError(t, err)
	assert.False(t, ok)
}
