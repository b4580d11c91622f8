// Package clickhouse provides the ClickHouse adapter: the usual server
// under test, and a peer reached through remote().
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
)

// DefaultPort is the native protocol port.
const DefaultPort = 9000

// Params holds ClickHouse-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Settings are sent with every query.
	Settings map[string]string `mapstructure:"settings"`

	// DialTimeout bounds connection setup (e.g. "10s").
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// Compression is "lz4", "zstd" or "none".
	Compression string `mapstructure:"compression"`

	// Protocol is "native" (default) or "http".
	Protocol string `mapstructure:"protocol"`

	// Secure enables TLS.
	Secure bool `mapstructure:"secure"`
}

// Adapter implements adapter.PeerHost for ClickHouse.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new ClickHouse adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	return &Adapter{BaseSQLAdapter: adapter.NewBase(logger)}
}

// Name returns the registered adapter type.
func (a *Adapter) Name() string {
	return "clickhouse"
}

// Connect opens a single-connection pool, so SET and transaction
// statements of a session apply to the statements after them.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to clickhouse",
		slog.String("addr", opts.Addr[0]),
		slog.String("database", opts.Auth.Database))

	db := ch.OpenDB(opts)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return a.Attach(ctx, db, cfg)
}

func buildOptions(cfg adapter.Config) (*ch.Options, error) {
	var p Params
	if err := adapter.DecodeParams(cfg.Params, &p); err != nil {
		return nil, err
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	username := cfg.Username
	if username == "" {
		username = "default"
	}

	opts := &ch.Options{
		Addr: []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: ch.Auth{
			Database: cfg.Database,
			Username: username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	}
	if p.DialTimeout > 0 {
		opts.DialTimeout = p.DialTimeout
	}
	if len(p.Settings) > 0 {
		opts.Settings = ch.Settings{}
		for k, v := range p.Settings {
			opts.Settings[k] = v
		}
	}

	switch strings.ToLower(p.Compression) {
	case "", "none":
	case "lz4":
		opts.Compression = &ch.Compression{Method: ch.CompressionLZ4}
	case "zstd":
		opts.Compression = &ch.Compression{Method: ch.CompressionZSTD}
	default:
		return nil, fmt.Errorf("unknown clickhouse compression %q", p.Compression)
	}

	switch strings.ToLower(p.Protocol) {
	case "", "native":
		opts.Protocol = ch.Native
	case "http":
		opts.Protocol = ch.HTTP
	default:
		return nil, fmt.Errorf("unknown clickhouse protocol %q", p.Protocol)
	}

	if p.Secure {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// ColumnType accepts every ClickHouse type unchanged.
func (a *Adapter) ColumnType(clickhouse string) (string, bool) {
	return clickhouse, true
}

// TableFunction returns remote('addr', 'db', 'table', 'user', 'password').
func (a *Adapter) TableFunction(table string) (string, []string) {
	username := a.Cfg.Username
	if username == "" {
		username = "default"
	}
	database := a.Cfg.Database
	if database == "" {
		database = "default"
	}
	return "remote", []string{adapter.ServerAddress(a.Cfg, DefaultPort), database, table, username, a.Cfg.Password}
}

// QuoteIdent quotes name with backticks.
func (a *Adapter) QuoteIdent(name string) string {
	return adapter.QuoteWith("`", name)
}

// CreateTableSQL creates a MergeTree table without a sorting key.
func (a *Adapter) CreateTableSQL(table string, columns []string) string {
	return "CREATE TABLE " + a.QuoteIdent(table) + " (" + strings.Join(columns, ", ") + ") ENGINE = MergeTree() ORDER BY tuple()"
}

// TruncateSQL returns TRUNCATE TABLE.
func (a *Adapter) TruncateSQL(table string) string {
	return "TRUNCATE TABLE " + a.QuoteIdent(table)
}

// OptimizeSQL forces the final merge, so engines that collapse rows do so
// before a comparison.
func (a *Adapter) OptimizeSQL(table string) string {
	return "OPTIMIZE TABLE " + a.QuoteIdent(table) + " FINAL"
}

var _ adapter.PeerHost = (*Adapter)(nil)
