package core

import (
	"context"
	"database/sql"
)

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Name returns the registered adapter type.
	Name() string
}

// PeerHost is implemented by adapters whose engine can hold peer copies of
// target tables. The target reaches a peer table through a table function.
type PeerHost interface {
	Adapter

	// ColumnType maps a ClickHouse scalar type name to the engine's column
	// type. It reports false for types the engine cannot represent.
	ColumnType(clickhouse string) (string, bool)

	// TableFunction returns the name and arguments of the ClickHouse table
	// function that reads and writes table on this engine.
	TableFunction(table string) (name string, args []string)

	// QuoteIdent quotes an identifier for the engine.
	QuoteIdent(name string) string

	// CreateTableSQL returns the statement creating table from column
	// definitions already rendered as "quoted-name type".
	CreateTableSQL(table string, columns []string) string

	// TruncateSQL returns the statement that empties table.
	TruncateSQL(table string) string

	// OptimizeSQL returns the statement that settles pending merges of
	// table, or "" when the engine has none.
	OptimizeSQL(table string) string
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
	Params   map[string]any
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
