// Package sqlite provides the SQLite peer adapter, reached from ClickHouse
// through the sqlite() table function. The database file must be readable
// by the server under test at the same path, or at the path given by the
// "server_path" option.
package sqlite

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var columnTypes = adapter.TypeMap{
	"Int8":          "INTEGER",
	"Int16":         "INTEGER",
	"Int32":         "INTEGER",
	"Int64":         "INTEGER",
	"UInt8":         "INTEGER",
	"UInt16":        "INTEGER",
	"UInt32":        "INTEGER",
	"Float32":       "REAL",
	"Float64":       "REAL",
	"Bool":          "INTEGER",
	"String":        "TEXT",
	"Date":          "TEXT",
	"Date32":        "TEXT",
	"DateTime":      "TEXT",
	"DateTime64(3)": "TEXT",
}

// Adapter implements adapter.PeerHost for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "sqlite"
}

// Connect opens the database file at cfg.Path (":memory:" by default).
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	a.Logger.Debug("connecting to sqlite", slog.String("path", path))

	if err := a.Open(ctx, "sqlite", path+"?_pragma=busy_timeout(5000)", cfg); err != nil {
		return err
	}
	a.DB.SetMaxOpenConns(1)
	a.Cfg.Path = path
	return nil
}

// ColumnType maps a ClickHouse scalar to a SQLite column affinity.
func (a *Adapter) ColumnType(clickhouse string) (string, bool) {
	return columnTypes.Lookup(clickhouse)
}

// TableFunction returns sqlite('path', 'table').
func (a *Adapter) TableFunction(table string) (string, []string) {
	path := a.Cfg.Path
	if p := a.Cfg.Options["server_path"]; p != "" {
		path = p
	}
	return "sqlite", []string{path, table}
}

// QuoteIdent quotes name with double quotes.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteWith(`"`, name)
}

// CreateTableSQL returns CREATE TABLE.
func (a *Adapter) CreateTableSQL(table string, columns []string) string {
	return "CREATE TABLE " + a.QuoteIdent(table) + " (" + strings.Join(columns, ", ") + ")"
}

// TruncateSQL returns DELETE FROM; SQLite has no TRUNCATE.
func (a *Adapter) TruncateSQL(table string) string {
	return "DELETE FROM " + a.QuoteIdent(table)
}

// OptimizeSQL returns "".
func (a *Adapter) OptimizeSQL(string) string {
	return ""
}

var _ adapter.PeerHost = (*Adapter)(nil)
