// Package mysql provides the MySQL peer adapter, reached from ClickHouse
// through the mysql() table function.
package mysql

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
)

// DefaultPort is the MySQL protocol port.
const DefaultPort = 3306

var columnTypes = adapter.TypeMap{
	"Int8":           "TINYINT",
	"Int16":          "SMALLINT",
	"Int32":          "INT",
	"Int64":          "BIGINT",
	"UInt8":          "TINYINT UNSIGNED",
	"UInt16":         "SMALLINT UNSIGNED",
	"UInt32":         "INT UNSIGNED",
	"UInt64":         "BIGINT UNSIGNED",
	"Float32":        "FLOAT",
	"Float64":        "DOUBLE",
	"Decimal(18, 4)": "DECIMAL(18, 4)",
	"Bool":           "BOOLEAN",
	"String":         "TEXT",
	"FixedString(8)": "BINARY(8)",
	"Date":           "DATE",
	"Date32":         "DATE",
	"DateTime":       "DATETIME",
	"DateTime64(3)":  "DATETIME(3)",
}

// Adapter implements adapter.PeerHost for MySQL.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new MySQL adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "mysql"
}

// Connect establishes a connection to MySQL.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg)
	a.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	return a.Open(ctx, "mysql", dsn, cfg)
}

// buildDSN renders cfg through the driver's own config type. Options are
// passed through as DSN parameters.
func buildDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	c := driver.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = host + ":" + strconv.Itoa(port)
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Timeout = 10 * time.Second
	for k, v := range cfg.Options {
		if k == "server_address" {
			continue
		}
		if c.Params == nil {
			c.Params = map[string]string{}
		}
		c.Params[k] = v
	}
	return c.FormatDSN()
}

// ColumnType maps a ClickHouse scalar to a MySQL column type.
func (a *Adapter) ColumnType(clickhouse string) (string, bool) {
	return columnTypes.Lookup(clickhouse)
}

// TableFunction returns mysql('addr', 'db', 'table', 'user', 'password').
func (a *Adapter) TableFunction(table string) (string, []string) {
	return "mysql", []string{adapter.ServerAddress(a.Cfg, DefaultPort), a.Cfg.Database, table, a.Cfg.Username, a.Cfg.Password}
}

// QuoteIdent quotes name with backticks.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteWith("`", name)
}

// CreateTableSQL creates an InnoDB table.
func (a *Adapter) CreateTableSQL(table string, columns []string) string {
	return "CREATE TABLE " + a.QuoteIdent(table) + " (" + strings.Join(columns, ", ") + ") ENGINE = InnoDB"
}

// TruncateSQL returns TRUNCATE TABLE.
func (a *Adapter) TruncateSQL(table string) string {
	return "TRUNCATE TABLE " + a.QuoteIdent(table)
}

// OptimizeSQL returns "": InnoDB has no pending merges.
func (a *Adapter) OptimizeSQL(string) string {
	return ""
}

var _ adapter.PeerHost = (*Adapter)(nil)
