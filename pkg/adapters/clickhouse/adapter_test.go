package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     adapter.Config
		verify  func(t *testing.T, opts *ch.Options)
		wantErr string
	}{
		{
			name: "defaults",
			cfg:  adapter.Config{},
			verify: func(t *testing.T, opts *ch.Options) {
				assert.Equal(t, []string{"localhost:9000"}, opts.Addr)
				assert.Equal(t, "default", opts.Auth.Username)
				assert.Equal(t, 10*time.Second, opts.DialTimeout)
				assert.Equal(t, ch.Native, opts.Protocol)
				assert.Nil(t, opts.Compression)
				assert.Nil(t, opts.TLS)
			},
		},
		{
			name: "params",
			cfg: adapter.Config{
				Host:     "ch",
				Port:     9440,
				Database: "fuzz",
				Username: "tester",
				Params: map[string]any{
					"settings":     map[string]any{"max_execution_time": 30},
					"dial_timeout": "2s",
					"compression":  "LZ4",
					"secure":       true,
				},
			},
			verify: func(t *testing.T, opts *ch.Options) {
				assert.Equal(t, []string{"ch:9440"}, opts.Addr)
				assert.Equal(t, "fuzz", opts.Auth.Database)
				assert.Equal(t, "tester", opts.Auth.Username)
				assert.Equal(t, 2*time.Second, opts.DialTimeout)
				assert.Equal(t, "30", opts.Settings["max_execution_time"])
				require.NotNil(t, opts.Compression)
				assert.Equal(t, ch.CompressionLZ4, opts.Compression.Method)
				assert.NotNil(t, opts.TLS)
			},
		},
		{
			name:    "bad compression",
			cfg:     adapter.Config{Params: map[string]any{"compression": "snappy"}},
			wantErr: "unknown clickhouse compression",
		},
		{
			name:    "bad protocol",
			cfg:     adapter.Config{Params: map[string]any{"protocol": "grpc"}},
			wantErr: "unknown clickhouse protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := buildOptions(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, opts)
		})
	}
}

func TestPeerStatements(t *testing.T) {
	a := New(nil)
	a.Cfg = adapter.Config{Host: "peer-ch", Database: "fuzz", Password: "pw"}

	name, args := a.TableFunction("t3")
	assert.Equal(t, "remote", name)
	assert.Equal(t, []string{"peer-ch:9000", "fuzz", "t3", "default", "pw"}, args)

	typ, ok := a.ColumnType("Nullable(IPv6)")
	assert.True(t, ok)
	assert.Equal(t, "Nullable(IPv6)", typ)

	assert.Equal(t, "CREATE TABLE `t3` (`c0` Int32) ENGINE = MergeTree() ORDER BY tuple()", a.CreateTableSQL("t3", []string{"`c0` Int32"}))
	assert.Equal(t, "TRUNCATE TABLE `t3`", a.TruncateSQL("t3"))
	assert.Equal(t, "OPTIMIZE TABLE `t3` FINAL", a.OptimizeSQL("t3"))
}
