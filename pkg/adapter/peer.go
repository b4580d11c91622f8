package adapter

import (
	"fmt"
	"strings"
)

// ServerAddress returns the host:port the server under test uses to reach
// cfg. The "server_address" option overrides it when the target sees the
// peer under another name than leapfuzz does.
func ServerAddress(cfg Config, defaultPort int) string {
	if addr := cfg.Options["server_address"]; addr != "" {
		return addr
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// TypeMap maps ClickHouse scalar type names to an engine's column types.
type TypeMap map[string]string

// Lookup returns the engine type for a ClickHouse scalar. Nullable and
// LowCardinality wrappers are dropped; peer columns are always nullable.
func (m TypeMap) Lookup(clickhouse string) (string, bool) {
	name := clickhouse
	for {
		inner, ok := unwrap(name, "Nullable(")
		if !ok {
			inner, ok = unwrap(name, "LowCardinality(")
		}
		if !ok {
			break
		}
		name = inner
	}
	t, ok := m[name]
	return t, ok
}

func unwrap(name, prefix string) (string, bool) {
	if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ")") {
		return name[len(prefix) : len(name)-1], true
	}
	return name, false
}

// QuoteWith quotes name with q, doubling embedded quote characters.
func QuoteWith(q, name string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}
