package adapter_test

import (
	"testing"

	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/sqlite"
)

func TestListAdapters(t *testing.T) {
	assert.Equal(t,
		[]string{"clickhouse", "duckdb", "mysql", "postgres", "sqlite"},
		filterTestAdapters(adapter.ListAdapters()))
}

// filterTestAdapters drops names registered by unit tests of this package.
func filterTestAdapters(names []string) []string {
	var out []string
	for _, n := range names {
		if n != "test_adapter_internal" {
			out = append(out, n)
		}
	}
	return out
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		adapterName string
		expected    bool
	}{
		{"clickhouse", true},
		{"ClickHouse", true},
		{"duckdb", true},
		{"mysql", true},
		{"postgres", true},
		{"sqlite", true},
		{"oracle", false},
	}

	for _, tt := range tests {
		t.Run(tt.adapterName, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.IsRegistered(tt.adapterName))
		})
	}
}

func TestNewAdapter(t *testing.T) {
	adp, err := adapter.NewAdapter(core.AdapterConfig{Type: "sqlite", Path: ":memory:"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", adp.Name())

	_, err = adapter.NewAdapter(core.AdapterConfig{Type: "unknown_adapter"}, nil)
	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "unknown_adapter", unknownErr.Type)
	assert.Contains(t, unknownErr.Available, "clickhouse")
}

func TestNewPeerHost(t *testing.T) {
	tests := []struct {
		name    string
		wantErr string
	}{
		{name: "clickhouse"},
		{name: "mysql"},
		{name: "postgres"},
		{name: "sqlite"},
		{name: "duckdb", wantErr: "cannot hold peer tables"},
		{name: "nope", wantErr: "unknown adapter type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, err := adapter.NewPeerHost(core.AdapterConfig{Type: tt.name}, nil)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, host.Name())
		})
	}
}

func TestListPeerHosts(t *testing.T) {
	assert.Equal(t, []string{"clickhouse", "mysql", "postgres", "sqlite"},
		filterTestAdapters(adapter.ListPeerHosts()))
}
