// Package oracle runs pairs of related statements against the server under
// test and compares digests of their results.
//
// Each protocol is a short sequence of statements. Intermediate steps (an
// export, a SET, a copy into a peer table) record their own success so that
// a failed step is never mistaken for a wrong result: a Divergence is only
// reported when both compared queries succeeded, every intermediate step
// succeeded, and the digests differ.
package oracle

import (
	"context"
	"maps"
	"slices"
	"strconv"

	"github.com/google/go-cmp/cmp"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Executor runs statements on the server under test.
type Executor interface {
	// Execute runs st and reports whether it succeeded.
	Execute(ctx context.Context, st *sqltree.Statement) bool
	// Query runs st and returns its rows.
	Query(ctx context.Context, st *sqltree.Statement) (core.Result, bool)
	// PeerReference returns the table function reaching the peer copy of t.
	PeerReference(t *catalog.Table) *sqltree.TableFunction
	// TruncatePeerTable empties the peer copy of t.
	TruncatePeerTable(ctx context.Context, t *catalog.Table) bool
	// OptimizePeerTable merges the peer copy of t where the peer supports it.
	OptimizePeerTable(ctx context.Context, t *catalog.Table) bool
}

// Divergence is a mismatch between two successful results.
type Divergence struct {
	Oracle       string
	FirstSQL     string
	SecondSQL    string
	FirstDigest  Digest
	SecondDigest Digest
	// Detail is a row diff of the two results.
	Detail string
}

// Config tunes the oracle protocols.
type Config struct {
	// FilePath is the directory, relative to the server's user files, that
	// dump/reload exports go to.
	FilePath string
	// MaxSettings bounds the settings varied by the settings protocol.
	MaxSettings uint32
}

// DefaultConfig returns the default oracle configuration.
func DefaultConfig() Config {
	return Config{FilePath: "leapfuzz", MaxSettings: 5}
}

// exportFormats are formats that round-trip every generated type.
var exportFormats = []string{"Native", "RowBinary", "TabSeparated", "CSV", "JSONEachRow", "Values"}

// Oracle holds the state of one protocol run. It shares the random source
// of the generator it is built on.
type Oracle struct {
	cfg Config
	gen *generator.Generator
	ex  Executor
	rng *random.Generator

	firstDigest, secondDigest       Digest
	firstRows                       []string
	firstSuccess, secondSuccess     bool
	otherStepsSuccess, canTestQuery bool
	foundTables                     map[uint32]struct{}
	nsettings                       []sqltree.SettingValue
}

// New returns an oracle drawing queries from gen and running them on ex.
func New(cfg Config, gen *generator.Generator, ex Executor) *Oracle {
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultConfig().FilePath
	}
	if cfg.MaxSettings == 0 {
		cfg.MaxSettings = DefaultConfig().MaxSettings
	}
	o := &Oracle{cfg: cfg, gen: gen, ex: ex, rng: gen.Rand()}
	o.Reset()
	return o
}

// Reset clears the state of the previous protocol run.
func (o *Oracle) Reset() {
	o.firstDigest, o.secondDigest = Digest{}, Digest{}
	o.firstRows = nil
	o.firstSuccess, o.secondSuccess = true, true
	o.otherStepsSuccess, o.canTestQuery = true, true
	o.foundTables = make(map[uint32]struct{})
	o.nsettings = nil
}

// SetIntermediateStepSuccess records the outcome of a step that is not
// compared.
func (o *Oracle) SetIntermediateStepSuccess(success bool) {
	o.otherStepsSuccess = o.otherStepsSuccess && success
}

// StepFailed reports whether an intermediate step of the last run failed.
func (o *Oracle) StepFailed() bool {
	return !o.otherStepsSuccess
}

// CanTestQuery reports whether the protocol may go on to the second
// compared query.
func (o *Oracle) CanTestQuery() bool {
	return o.canTestQuery && o.firstSuccess && o.otherStepsSuccess
}

// ProcessFirstResult records the first compared result.
func (o *Oracle) ProcessFirstResult(success bool, res core.Result) {
	o.firstSuccess = success
	if !success {
		o.canTestQuery = false
		return
	}
	o.firstDigest = digest(res)
	o.firstRows = canonicalRows(res)
}

// ProcessSecondResult records the second compared result and returns a
// Divergence when both sides succeeded with different digests.
func (o *Oracle) ProcessSecondResult(success bool, name string, res core.Result) *Divergence {
	o.secondSuccess = success
	if !success || !o.firstSuccess || !o.otherStepsSuccess {
		return nil
	}
	o.secondDigest = digest(res)
	if o.firstDigest == o.secondDigest {
		return nil
	}
	return &Divergence{
		Oracle:       name,
		FirstDigest:  o.firstDigest,
		SecondDigest: o.secondDigest,
		Detail:       cmp.Diff(o.firstRows, canonicalRows(res)),
	}
}

func (o *Oracle) exprs() *expr.Generator {
	return o.gen.Exprs()
}

func (o *Oracle) catalog() *catalog.Catalog {
	return o.gen.Catalog()
}

// Comparable reports whether t may take part in a compared query.
func Comparable(t *catalog.Table) bool {
	return t.Deterministic && len(t.Fields(false)) > 0
}

// Dumpable reports whether the contents of t survive an export and reload
// unchanged: engines that do not merge rows on insert, with at least one
// column to dump.
func Dumpable(t *catalog.Table) bool {
	switch t.Engine {
	case sqltree.EngineMergeTree, sqltree.EngineMemory, sqltree.EngineLog,
		sqltree.EngineTinyLog, sqltree.EngineStripeLog:
	default:
		return false
	}
	return t.Deterministic && len(dumpFields(t)) > 0
}

// relations picks up to limit deterministic relations. With peers set only
// tables holding a peer copy qualify.
func (o *Oracle) relations(peers bool, limit uint32) []expr.Relation {
	c := o.catalog()
	var pool []func(alias string) expr.Relation
	for _, t := range c.AttachedTables(Comparable) {
		if peers && !t.HasPeer() {
			continue
		}
		pool = append(pool, func(alias string) expr.Relation { return expr.TableRelation(t, alias) })
	}
	if !peers {
		for _, v := range c.AttachedViews(func(v *catalog.View) bool { return v.Deterministic && len(v.Cols) > 0 }) {
			pool = append(pool, func(alias string) expr.Relation { return expr.ViewRelation(v, alias) })
		}
		for _, d := range c.AttachedDictionaries(func(d *catalog.Dictionary) bool { return d.Deterministic }) {
			pool = append(pool, func(alias string) expr.Relation { return expr.DictionaryRelation(d, alias) })
		}
	}
	if len(pool) == 0 {
		return nil
	}
	n := o.rng.RandomInt(1, max(limit, 1))
	rels := make([]expr.Relation, 0, n)
	for i := uint32(0); i < n; i++ {
		rels = append(rels, random.Pick(o.rng, pool)("x"+strconv.FormatUint(uint64(i), 10)))
	}
	return rels
}

func query(s *sqltree.Select) *sqltree.Statement {
	return &sqltree.Statement{Query: &sqltree.SelectStmt{Select: s}}
}

// CorrectnessFirstQuery builds SELECT count() FROM ... WHERE p over
// deterministic relations. It returns nil when no relation qualifies.
func (o *Oracle) CorrectnessFirstQuery() *sqltree.Statement {
	rels := o.relations(false, 3)
	if rels == nil {
		return nil
	}
	s := &sqltree.Select{
		Items: []sqltree.SelectItem{{Expr: sqltree.Call("count")}},
		Where: o.exprs().Predicate(expr.Columns(rels)),
	}
	for _, r := range rels {
		s.From = append(s.From, r.Item)
	}
	return query(s)
}

// CorrectnessSecondQuery moves the filter of first into the projection:
// SELECT ifNull(sum(p), 0) FROM ... counts the same rows.
func (o *Oracle) CorrectnessSecondQuery(first *sqltree.Statement) *sqltree.Statement {
	src := first.Query.(*sqltree.SelectStmt).Select
	s := &sqltree.Select{
		Items: []sqltree.SelectItem{{Expr: sqltree.Call("ifNull", sqltree.Call("sum", src.Where), sqltree.Lit("0"))}},
		From:  slices.Clone(src.From),
	}
	return query(s)
}

// dumpFields returns the fields of t that can be selected and inserted
// back.
func dumpFields(t *catalog.Table) []catalog.Field {
	return slices.DeleteFunc(t.Fields(true), func(f catalog.Field) bool {
		col, ok := t.Columns.Get(f.Path.Col)
		return !ok || col.Default == sqltree.DefaultEphemeral
	})
}

func fieldRefs(fields []catalog.Field) ([]sqltree.SelectItem, []sqltree.ColumnPath) {
	items := make([]sqltree.SelectItem, len(fields))
	paths := make([]sqltree.ColumnPath, len(fields))
	for i, f := range fields {
		items[i] = sqltree.SelectItem{Expr: sqltree.ColRef(f.Path)}
		paths[i] = f.Path
	}
	return items, paths
}

// DumpTableContent selects every dumpable column of t in a stable order.
func (o *Oracle) DumpTableContent(t *catalog.Table) *sqltree.Statement {
	items, _ := fieldRefs(dumpFields(t))
	ref := t.Ref()
	s := &sqltree.Select{Items: items, From: []sqltree.FromItem{{Table: &ref}}}
	for _, it := range items {
		s.OrderBy = append(s.OrderBy, sqltree.OrderItem{Expr: it.Expr})
	}
	return query(s)
}

// ExportQuery writes the dumpable columns of t to a file on the server.
func (o *Oracle) ExportQuery(t *catalog.Table) *sqltree.Statement {
	fields := dumpFields(t)
	items, _ := fieldRefs(fields)
	ref := t.Ref()
	fn := &sqltree.TableFunction{Name: "file", Args: []sqltree.Expr{
		sqltree.Lit(sqltree.Quote(o.cfg.FilePath + "/" + ref.Name() + ".data")),
		sqltree.Lit(sqltree.Quote(random.Pick(o.rng, exportFormats))),
		sqltree.Lit(sqltree.Quote(expr.Structure(fields))),
	}}
	return &sqltree.Statement{Query: &sqltree.Insert{
		Function: fn,
		Select:   &sqltree.Select{Items: items, From: []sqltree.FromItem{{Table: &ref}}},
		Settings: []sqltree.SettingValue{{Name: "engine_file_truncate_on_insert", Value: "1"}},
	}}
}

// ClearQuery truncates t.
func (o *Oracle) ClearQuery(t *catalog.Table) *sqltree.Statement {
	return &sqltree.Statement{Query: &sqltree.Truncate{Object: t.Ref()}}
}

// ImportQuery inserts back into t what export wrote.
func (o *Oracle) ImportQuery(t *catalog.Table, export *sqltree.Statement) *sqltree.Statement {
	fn := export.Query.(*sqltree.Insert).Function
	_, paths := fieldRefs(dumpFields(t))
	return &sqltree.Statement{Query: &sqltree.Insert{
		Table:   t.Ref(),
		Columns: paths,
		Select: &sqltree.Select{
			Items: []sqltree.SelectItem{{Expr: &sqltree.Star{}}},
			From:  []sqltree.FromItem{{Function: fn}},
		},
	}}
}

// FirstSetting sets random values of result-neutral settings and remembers
// them for SecondSetting.
func (o *Oracle) FirstSetting() *sqltree.Statement {
	o.nsettings = o.gen.Settings().Pick(o.rng, settings.ResultNeutral, o.cfg.MaxSettings)
	return &sqltree.Statement{Query: &sqltree.SetValues{Settings: o.nsettings}}
}

// SecondSetting sets the settings of FirstSetting to different values.
func (o *Oracle) SecondSetting() *sqltree.Statement {
	varied := o.gen.Settings().Vary(o.rng, settings.ResultNeutral, o.nsettings)
	return &sqltree.Statement{Query: &sqltree.SetValues{Settings: varied}}
}

// OracleSelectQuery builds a deterministic query without LIMIT. With peers
// set it only reads tables that hold a peer copy. It returns nil when no
// relation qualifies.
func (o *Oracle) OracleSelectQuery(peers bool) *sqltree.Statement {
	rels := o.relations(peers, 3)
	if rels == nil {
		return nil
	}
	s := o.exprs().Select(rels, expr.SelectOptions{Columns: o.rng.NextSmallNumber()%5 + 1})
	s.Limit = nil
	return query(s)
}

// peerTables returns the tables found by the last ReplaceQueryWithTablePeers
// in ascending id order.
func (o *Oracle) peerTables() []*catalog.Table {
	var out []*catalog.Table
	for _, id := range slices.Sorted(maps.Keys(o.foundTables)) {
		if t, ok := o.catalog().Tables.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// TruncatePeerTables empties the peer copies of the found tables.
func (o *Oracle) TruncatePeerTables(ctx context.Context) {
	for _, t := range o.peerTables() {
		o.SetIntermediateStepSuccess(o.ex.TruncatePeerTable(ctx, t))
	}
}

// OptimizePeerTables merges the peer copies of the found tables.
func (o *Oracle) OptimizePeerTables(ctx context.Context) {
	for _, t := range o.peerTables() {
		o.SetIntermediateStepSuccess(o.ex.OptimizePeerTable(ctx, t))
	}
}

// ReplaceQueryWithTablePeers rewrites every reference to a peered table in
// q to read its peer copy instead. It returns the statements that copy the
// current contents into the peers, and the rewritten query.
func (o *Oracle) ReplaceQueryWithTablePeers(q *sqltree.Statement) ([]*sqltree.Statement, *sqltree.Statement) {
	src := q.Query.(*sqltree.SelectStmt).Select
	rewritten := o.replacePeers(src)

	var copies []*sqltree.Statement
	for _, t := range o.peerTables() {
		ref := t.Ref()
		items, paths := fieldRefs(dumpFields(t))
		copies = append(copies, &sqltree.Statement{Query: &sqltree.Insert{
			Function: o.ex.PeerReference(t),
			Columns:  paths,
			Select:   &sqltree.Select{Items: items, From: []sqltree.FromItem{{Table: &ref}}},
		}})
	}
	return copies, query(rewritten)
}

func (o *Oracle) replacePeers(s *sqltree.Select) *sqltree.Select {
	out := *s
	out.From = make([]sqltree.FromItem, len(s.From))
	for i, f := range s.From {
		switch {
		case f.Table != nil && f.Table.Kind == sqltree.KindTable:
			if t, ok := o.catalog().Tables.Get(f.Table.ID); ok && t.HasPeer() {
				o.foundTables[t.ID] = struct{}{}
				f = sqltree.FromItem{Function: o.ex.PeerReference(t), Alias: f.Alias}
			}
		case f.Subquery != nil:
			f.Subquery = o.replacePeers(f.Subquery)
		}
		out.From[i] = f
	}
	return &out
}
