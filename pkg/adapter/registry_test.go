package adapter

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()

	// Check that error message contains important info
	assert.NotEmpty(t, msg, "error message should not be empty")

	// Should mention the type
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type 'fake_db'")

	// Should hint about config
	assert.Contains(t, msg, "leapfuzz.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("Test_Adapter_Internal", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_adapter_internal"), "names are case insensitive")
	factory, ok := Get("TEST_ADAPTER_INTERNAL")
	assert.True(t, ok)
	assert.NotNil(t, factory)

	assert.Panics(t, func() {
		Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return nil })
	}, "duplicate registration")
	assert.Panics(t, func() { Register("test_adapter_nil", nil) })
	assert.False(t, IsRegistered("test_adapter_nil"))
}

func TestNewAdapter_EmptyType(t *testing.T) {
	cfg := Config{
		Type: "",
	}

	_, err := NewAdapter(cfg, nil)
	require.Error(t, err, "NewAdapter with empty type should fail")
	assert.Equal(t, "adapter type not specified", err.Error(), "error message")
}

func TestServerAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "defaults", cfg: Config{}, want: "localhost:3306"},
		{name: "host and port", cfg: Config{Host: "db", Port: 3307}, want: "db:3307"},
		{
			name: "override",
			cfg:  Config{Host: "127.0.0.1", Options: map[string]string{"server_address": "mysql:3306"}},
			want: "mysql:3306",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerAddress(tt.cfg, 3306))
		})
	}
}

func TestQuoteWith(t *testing.T) {
	assert.Equal(t, "`t0`", QuoteWith("`", "t0"))
	assert.Equal(t, `"a""b"`, QuoteWith(`"`, `a"b`))
}

func TestTypeMap_Lookup(t *testing.T) {
	m := TypeMap{"Int32": "INTEGER", "String": "TEXT"}

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Int32", "INTEGER", true},
		{"Nullable(Int32)", "INTEGER", true},
		{"LowCardinality(Nullable(String))", "TEXT", true},
		{"Array(Int32)", "", false},
		{"UUID", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := m.Lookup(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
