package config

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/mysql"
)

func TestTargetConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  TargetConfig
		wantErr bool
		unknown bool
	}{
		{name: "registered", target: TargetConfig{Type: "clickhouse"}},
		{name: "case insensitive", target: TargetConfig{Type: "MySQL"}},
		{name: "missing type", target: TargetConfig{}, wantErr: true},
		{name: "unknown type", target: TargetConfig{Type: "oracle"}, wantErr: true, unknown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var unknownErr *adapter.UnknownAdapterError
			assert.Equal(t, tt.unknown, errors.As(err, &unknownErr))
		})
	}
}

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   TargetConfig
		want TargetConfig
	}{
		{name: "clickhouse", in: TargetConfig{Type: "clickhouse"}, want: TargetConfig{Type: "clickhouse", Port: 9000, User: "default"}},
		{name: "mysql keeps port", in: TargetConfig{Type: "mysql", Port: 3307}, want: TargetConfig{Type: "mysql", Port: 3307}},
		{name: "sqlite has no port", in: TargetConfig{Type: "sqlite", Path: "p.db"}, want: TargetConfig{Type: "sqlite", Path: "p.db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			ApplyTargetDefaults(&got)
			assert.Equal(t, tt.want, got)
		})
	}
	ApplyTargetDefaults(nil)
}

func TestToAdapterConfig(t *testing.T) {
	target := TargetConfig{Type: "ClickHouse", Host: "h", Port: 9000, User: "u", Password: "p", Database: "d",
		Options: map[string]string{"a": "b"}, Params: map[string]any{"compression": "lz4"}}

	cfg := target.ToAdapterConfig()
	assert.Equal(t, "clickhouse", cfg.Type)
	assert.Equal(t, "u", cfg.Username)
	assert.Equal(t, "d", cfg.Database)
	assert.Equal(t, "lz4", cfg.Params["compression"])
}
