// Package generator builds random, internally consistent statements against
// the catalog of a fuzzing session.
//
// Every builder picks its victims from the feasible, attached subset of the
// catalog in ascending id order and stages any new persistent definition;
// the applier decides later whether the staged state becomes real. Apart
// from the Environment probes the generator is a pure function of the seed
// and the catalog, so a seed reproduces a session.
package generator

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Environment answers the questions about the server under test that the
// catalog cannot.
type Environment interface {
	// TableHasPartitions reports whether t has active (or, with detached
	// set, detached) partitions.
	TableHasPartitions(ctx context.Context, detached bool, t *catalog.Table) bool
	// RandomPartitionOrPart returns a partition id (partition set) or a part
	// name of t, or "" when there is none.
	RandomPartitionOrPart(ctx context.Context, detached, partition bool, t *catalog.Table) string
	// HasBackupBucket reports whether an object-store bucket accepts S3
	// backups.
	HasBackupBucket() bool
}

// Config bounds the catalog a session may build and describes the server
// topology statements may reference.
type Config struct {
	MaxDatabases    uint32
	MaxTables       uint32
	MaxViews        uint32
	MaxDictionaries uint32
	MaxFunctions    uint32
	MaxColumns      uint32
	MinInsertRows   uint32
	MaxInsertRows   uint32
	Expr            expr.Limits

	Clusters     []string
	Disks        []string
	SystemTables []string
	// Peers lists the engines that can hold peer copies of new tables.
	Peers []sqltree.PeerKind
	// Replicated and Shared enable the matching database engines.
	Replicated bool
	Shared     bool
	// BackupPath is the directory File and S3 backups are written under.
	BackupPath string
	// RemoteHost is the host:port remote() inserts loop back through.
	RemoteHost string
	// S3Endpoint is the bucket URL S3 backups are written under.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxDatabases:    4,
		MaxTables:       10,
		MaxViews:        5,
		MaxDictionaries: 5,
		MaxFunctions:    5,
		MaxColumns:      5,
		MinInsertRows:   1,
		MaxInsertRows:   100,
		Expr:            expr.DefaultLimits,
		SystemTables:    []string{"numbers", "one", "tables", "columns", "parts", "settings"},
		BackupPath:      "backups",
		RemoteHost:      "localhost:9000",
	}
}

// Generator produces statements for one session. It is not safe for
// concurrent use.
type Generator struct {
	cfg      Config
	cat      *catalog.Catalog
	env      Environment
	rng      *random.Generator
	expr     *expr.Generator
	settings *settings.Source
}

// New returns a generator over cat. A nil src uses the built-in settings.
func New(cfg Config, cat *catalog.Catalog, env Environment, src *settings.Source, rng *random.Generator) *Generator {
	if src == nil {
		src = settings.Default()
	}
	if cfg.MaxColumns == 0 {
		cfg.MaxColumns = DefaultConfig().MaxColumns
	}
	if cfg.MaxInsertRows < cfg.MinInsertRows {
		cfg.MaxInsertRows = cfg.MinInsertRows
	}
	return &Generator{
		cfg:      cfg,
		cat:      cat,
		env:      env,
		rng:      rng,
		expr:     expr.New(rng, cfg.Expr),
		settings: src,
	}
}

// Catalog returns the catalog the generator builds against.
func (g *Generator) Catalog() *catalog.Catalog {
	return g.cat
}

// Rand returns the session random source.
func (g *Generator) Rand() *random.Generator {
	return g.rng
}

// Exprs returns the expression generator sharing the session random source.
func (g *Generator) Exprs() *expr.Generator {
	return g.expr
}

// Settings returns the settings source.
func (g *Generator) Settings() *settings.Source {
	return g.settings
}

// maybeSettings returns random settings of cat on a 1-in-5 draw.
func (g *Generator) maybeSettings(cat settings.Category) []sqltree.SettingValue {
	if g.rng.NextSmallNumber() < 3 {
		return g.settings.Pick(g.rng, cat, 3)
	}
	return nil
}

// pickCluster returns a configured cluster when the draw is below limit.
func (g *Generator) pickCluster(limit uint32) string {
	if len(g.cfg.Clusters) > 0 && g.rng.NextSmallNumber() < limit {
		return random.Pick(g.rng, g.cfg.Clusters)
	}
	return ""
}

// comment returns a random comment text, possibly empty.
func (g *Generator) comment() string {
	return g.rng.NextString("", true, g.rng.RandomInt(0, 8))
}

// hostDatabase picks the database a new object is created in: on an 8-in-10
// draw an attached, writable database when one exists.
func (g *Generator) hostDatabase() sqltree.DatabaseRef {
	writable := func(d *catalog.Database) bool { return d.Engine != sqltree.DatabaseBackup }
	if g.cat.HasAttachedDatabase(writable) && g.rng.NextSmallNumber() < 9 {
		return sqltree.InDatabase(g.cat.PickAttachedDatabase(g.rng, writable).ID)
	}
	return sqltree.DatabaseRef{}
}

func insertable(t *catalog.Table) bool {
	return len(t.Fields(true)) > 0
}

func mergeTree(t *catalog.Table) bool {
	return t.IsMergeTree()
}

func alterable(t *catalog.Table) bool {
	return !t.Engine.IsFile()
}

func exchangeable(t *catalog.Table) bool {
	return !t.HasPeer() && t.Cluster == ""
}

func deterministic(t *catalog.Table) bool {
	return t.Deterministic
}

// topLevelFields returns the fields of t that are not nested sub-columns.
func topLevelFields(t *catalog.Table, insertableOnly bool) []catalog.Field {
	var out []catalog.Field
	for _, f := range t.Fields(insertableOnly) {
		if !f.Path.IsNested() {
			out = append(out, f)
		}
	}
	return out
}

// columns exposes the fields of t unqualified.
func columns(t *catalog.Table) []expr.Column {
	return expr.Columns([]expr.Relation{expr.TableRelation(t, "")})
}

// paths returns the column paths of fields.
func paths(fields []catalog.Field) []sqltree.ColumnPath {
	out := make([]sqltree.ColumnPath, len(fields))
	for i, f := range fields {
		out[i] = f.Path
	}
	return out
}
