// Package postgres provides the PostgreSQL peer adapter, reached from
// ClickHouse through the postgresql() table function.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
)

// DefaultPort is the PostgreSQL protocol port.
const DefaultPort = 5432

var columnTypes = adapter.TypeMap{
	"Int8":           "SMALLINT",
	"Int16":          "SMALLINT",
	"Int32":          "INTEGER",
	"Int64":          "BIGINT",
	"UInt8":          "SMALLINT",
	"UInt16":         "INTEGER",
	"UInt32":         "BIGINT",
	"UInt64":         "NUMERIC(20, 0)",
	"Float32":        "REAL",
	"Float64":        "DOUBLE PRECISION",
	"Decimal(18, 4)": "NUMERIC(18, 4)",
	"Bool":           "BOOLEAN",
	"String":         "TEXT",
	"Date":           "DATE",
	"Date32":         "DATE",
	"DateTime":       "TIMESTAMP",
	"DateTime64(3)":  "TIMESTAMP(3)",
	"UUID":           "UUID",
}

// Adapter implements adapter.PeerHost for PostgreSQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new PostgreSQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildPostgresDSN(cfg)

	a.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	return a.Open(ctx, "pgx", dsn, cfg)
}

// buildPostgresDSN constructs a PostgreSQL connection string.
func buildPostgresDSN(cfg adapter.Config) string {
	// Build key=value format: host=localhost port=5432 user=postgres ...
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	return dsn
}

// ColumnType maps a ClickHouse scalar to a PostgreSQL column type.
func (a *Adapter) ColumnType(clickhouse string) (string, bool) {
	return columnTypes.Lookup(clickhouse)
}

// TableFunction returns postgresql('addr', 'db', 'table', 'user', 'password').
func (a *Adapter) TableFunction(table string) (string, []string) {
	return "postgresql", []string{adapter.ServerAddress(a.Cfg, DefaultPort), a.Cfg.Database, table, a.Cfg.Username, a.Cfg.Password}
}

// QuoteIdent quotes name with double quotes.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteWith(`"`, name)
}

// CreateTableSQL returns CREATE TABLE.
func (a *Adapter) CreateTableSQL(table string, columns []string) string {
	return "CREATE TABLE " + a.QuoteIdent(table) + " (" + strings.Join(columns, ", ") + ")"
}

// TruncateSQL returns TRUNCATE TABLE.
func (a *Adapter) TruncateSQL(table string) string {
	return "TRUNCATE TABLE " + a.QuoteIdent(table)
}

// OptimizeSQL returns "".
func (a *Adapter) OptimizeSQL(string) string {
	return ""
}

var _ adapter.PeerHost = (*Adapter)(nil)
