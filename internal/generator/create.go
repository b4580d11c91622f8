package generator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

var (
	fileFormats       = []string{"CSV", "TSVWithNames", "JSONEachRow", "Native", "Parquet"}
	indexTypes        = []string{"minmax", "set(8)", "bloom_filter", "bloom_filter(0.01)"}
	simpleLayouts     = []string{"FLAT", "HASHED", "SPARSE_HASHED", "HASHED_ARRAY"}
	complexLayouts    = []string{"COMPLEX_KEY_HASHED", "COMPLEX_KEY_SPARSE_HASHED", "COMPLEX_KEY_HASHED_ARRAY"}
	deterministicKind = map[sqltree.TableEngine]bool{
		sqltree.EngineMergeTree: true, sqltree.EngineMemory: true, sqltree.EngineLog: true,
		sqltree.EngineTinyLog: true, sqltree.EngineStripeLog: true,
	}
	peerEngines = []sqltree.TableEngine{sqltree.EngineMergeTree, sqltree.EngineMemory}
	viewEngines = []sqltree.TableEngine{
		sqltree.EngineReplacingMergeTree, sqltree.EngineSummingMergeTree, sqltree.EngineAggregatingMergeTree,
		sqltree.EngineMemory, sqltree.EngineLog, sqltree.EngineStripeLog,
	}
)

var (
	signType    = sqltree.Scalar{Name: "Int8", Family: sqltree.FamilyInt}
	versionType = sqltree.Scalar{Name: "UInt64", Family: sqltree.FamilyUInt}
	deletedType = sqltree.Scalar{Name: "UInt8", Family: sqltree.FamilyUInt}
)

// CreateTable builds CREATE [OR REPLACE] TABLE and stages the new table.
func (g *Generator) CreateTable(ctx context.Context) *sqltree.CreateTable {
	replace := g.cat.CountAttachedTables() > 3 && g.rng.NextMediumNumber() < 16
	t := &catalog.Table{}
	if replace {
		old := g.cat.PickAttachedTable(g.rng, nil)
		t.ID, t.DB = old.ID, old.DB
	} else {
		t.ID = g.cat.NextTableID()
		t.DB = g.hostDatabase()
	}

	if len(g.cfg.Peers) > 0 && g.rng.NextSmallNumber() < 3 {
		t.Peer = random.Pick(g.rng, g.cfg.Peers)
		t.Engine = random.Pick(g.rng, peerEngines)
	} else if g.rng.NextBool() {
		t.Engine = sqltree.EngineMergeTree
	} else {
		t.Engine = random.Pick(g.rng, sqltree.TableEngines)
	}
	t.Temporary = !replace && !t.HasPeer() && !t.DB.Valid && g.rng.NextSmallNumber() < 2 &&
		(t.Engine == sqltree.EngineMemory || t.Engine == sqltree.EngineMergeTree || t.Engine == sqltree.EngineLog)
	t.Deterministic = deterministicKind[t.Engine]
	if !t.Temporary {
		t.Cluster = g.pickCluster(4)
	}

	ct := &sqltree.CreateTable{Replace: replace, Temporary: t.Temporary, Table: t.Ref(), Cluster: t.Cluster}
	ncols := g.rng.NextMediumNumber()%g.cfg.MaxColumns + 1
	for i := uint32(0); i < ncols; i++ {
		col, def := g.newColumn(t, t.NextColumnID(), i > 0)
		t.Columns.Put(col.ID, col)
		ct.Columns = append(ct.Columns, def)
	}
	ct.Engine.Engine = t.Engine
	g.addSpecialColumns(t, ct)

	if t.IsMergeTree() {
		for n := g.rng.RandomInt(0, 2); n > 0 && g.rng.NextSmallNumber() < 4; n-- {
			if ix, ok := g.newIndex(t); ok {
				t.Indexes.Put(ix.ID, &catalog.Index{ID: ix.ID, Type: ix.Type})
				ct.Indexes = append(ct.Indexes, ix)
			}
		}
		if g.rng.NextSmallNumber() < 3 {
			pr := g.newProjection(t)
			t.Projections.Put(pr.ID, &catalog.Projection{ID: pr.ID})
			ct.Projections = append(ct.Projections, pr)
		}
		g.mergeTreeDetails(t, &ct.Engine)
	}
	if g.rng.NextSmallNumber() < 3 {
		cs := g.newConstraint(t)
		t.Constraints.Put(cs.ID, &catalog.Constraint{ID: cs.ID, Assume: cs.Assume})
		ct.Constraints = append(ct.Constraints, cs)
	}
	if g.rng.NextSmallNumber() < 3 {
		t.Comment = g.comment()
		ct.Comment = t.Comment
	}

	if replace {
		g.cat.Tables.StageReplacement(t.ID, t)
	} else {
		g.cat.Tables.Stage(t.ID, t)
	}
	return ct
}

// newColumn returns a fresh column definition with the given id. Peer
// tables get plain scalar columns only.
func (g *Generator) newColumn(t *catalog.Table, id uint32, allowComputed bool) (*catalog.Column, sqltree.ColumnDef) {
	col := &catalog.Column{ID: id}
	if t.HasPeer() {
		col.Type = g.expr.Scalar()
	} else {
		col.Type = g.expr.Type(t.NextColumnID)
	}
	_, scalar := col.Type.(sqltree.Scalar)
	if scalar && g.rng.NextSmallNumber() < 3 {
		col.Null = sqltree.NullNo
		if g.rng.NextBool() {
			col.Null = sqltree.NullYes
		}
	}

	def := sqltree.ColumnDef{Path: sqltree.Col(id), Type: col.Type, Null: col.Null}
	if !t.HasPeer() && !sqltree.IsNested(col.Type) && g.rng.NextSmallNumber() < 3 {
		n := g.rng.NextMediumNumber()
		switch {
		case n <= 50 || !allowComputed:
			col.Default = sqltree.DefaultValue
		case n <= 70:
			col.Default = sqltree.DefaultMaterialized
		case n <= 90:
			col.Default = sqltree.DefaultAlias
		default:
			col.Default = sqltree.DefaultEphemeral
		}
		def.Default = col.Default
		def.DefaultExpr = g.expr.Literal(col.Type)
	}
	if t.IsMergeTree() && g.rng.NextSmallNumber() < 2 && col.Default != sqltree.DefaultAlias {
		col.Codecs = g.expr.Codecs()
		def.Codecs = col.Codecs
	}
	if g.rng.NextSmallNumber() < 2 {
		col.Comment = g.comment()
		def.Comment = col.Comment
	}
	if t.IsMergeTree() && g.rng.NextSmallNumber() < 2 {
		def.Settings = g.settings.Pick(g.rng, settings.MergeTreeColumn, 2)
		col.Settings = make(map[string]string, len(def.Settings))
		for _, s := range def.Settings {
			col.Settings[s.Name] = s.Value
		}
	}
	return col, def
}

// addSpecialColumns appends the sign, version and is_deleted columns the
// engine needs and wires them into the engine arguments.
func (g *Generator) addSpecialColumns(t *catalog.Table, ct *sqltree.CreateTable) {
	add := func(typ sqltree.Scalar, role catalog.SpecialRole) sqltree.Expr {
		col := &catalog.Column{ID: t.NextColumnID(), Type: typ, Special: role}
		t.Columns.Put(col.ID, col)
		ct.Columns = append(ct.Columns, sqltree.ColumnDef{Path: sqltree.Col(col.ID), Type: typ})
		return sqltree.ColRef(sqltree.Col(col.ID))
	}
	e := &ct.Engine
	switch t.Engine {
	case sqltree.EngineCollapsingMergeTree:
		e.Args = append(e.Args, add(signType, catalog.RoleSign))
	case sqltree.EngineVersionedCollapsingMergeTree:
		e.Args = append(e.Args, add(signType, catalog.RoleSign), add(versionType, catalog.RoleVersion))
	case sqltree.EngineReplacingMergeTree:
		if g.rng.NextBool() {
			e.Args = append(e.Args, add(versionType, catalog.RoleVersion))
			if g.rng.NextBool() {
				e.Args = append(e.Args, add(deletedType, catalog.RoleIsDeleted))
			}
		}
	case sqltree.EngineFile:
		e.Args = []sqltree.Expr{&sqltree.Ident{Name: random.Pick(g.rng, fileFormats)}}
	case sqltree.EngineJoin:
		e.Args = []sqltree.Expr{&sqltree.Ident{Name: "ANY"}, &sqltree.Ident{Name: "LEFT"}}
		if fields := topLevelFields(t, false); len(fields) > 0 {
			e.Args = append(e.Args, sqltree.ColRef(random.Pick(g.rng, fields).Path))
		}
	}
}

// mergeTreeDetails fills the keys, TTL and settings of a MergeTree engine.
func (g *Generator) mergeTreeDetails(t *catalog.Table, e *sqltree.EngineDef) {
	cols := columns(t)
	if g.rng.NextSmallNumber() < 9 {
		e.OrderBy = g.expr.OrderKey(cols, 3)
	}
	if len(e.OrderBy) > 1 && g.rng.NextSmallNumber() < 3 {
		e.PrimaryKey = e.OrderBy[:g.rng.RandomInt(1, uint32(len(e.OrderBy)))]
	}
	if g.rng.NextSmallNumber() < 5 {
		if key := g.expr.OrderKey(cols, 1); len(key) > 0 {
			e.PartitionBy = []sqltree.Expr{sqltree.Binary("%",
				sqltree.Call("cityHash64", key[0]), sqltree.Lit(strconv.Itoa(int(g.rng.RandomInt(2, 8)))))}
		}
	}
	if g.rng.NextMediumNumber() < 16 {
		e.TTL = g.ttl(t)
	}
	if g.rng.NextSmallNumber() < 3 {
		e.Settings = g.settings.Pick(g.rng, settings.MergeTreeTable, 3)
		t.Settings = make(map[string]string, len(e.Settings))
		for _, s := range e.Settings {
			t.Settings[s.Name] = s.Value
		}
	}
}

// ttl returns a TTL clause over a date column of t, or over a constant date
// when t has none.
func (g *Generator) ttl(t *catalog.Table) *sqltree.TTLDef {
	var dates []catalog.Field
	for _, f := range topLevelFields(t, false) {
		if s, ok := f.Type.(sqltree.Scalar); ok && (s.Family == sqltree.FamilyDate || s.Family == sqltree.FamilyDateTime) {
			dates = append(dates, f)
		}
	}
	var base sqltree.Expr = sqltree.Call("toDate", sqltree.Lit("'2105-01-01'"))
	if len(dates) > 0 {
		base = sqltree.ColRef(random.Pick(g.rng, dates).Path)
	}
	def := &sqltree.TTLDef{
		Expr: sqltree.Binary("+", base, &sqltree.IntervalExpr{Value: g.rng.NextSmallNumber(), Unit: random.Pick(g.rng, []string{"DAY", "MONTH", "YEAR"})}),
	}
	if g.rng.NextBool() {
		def.Action = "DELETE"
	}
	return def
}

// newIndex returns a fresh index over a top-level column of t.
func (g *Generator) newIndex(t *catalog.Table) (sqltree.IndexDef, bool) {
	fields := topLevelFields(t, false)
	if len(fields) == 0 {
		return sqltree.IndexDef{}, false
	}
	return sqltree.IndexDef{
		ID:          t.NextIndexID(),
		Expr:        sqltree.ColRef(random.Pick(g.rng, fields).Path),
		Type:        random.Pick(g.rng, indexTypes),
		Granularity: g.rng.RandomInt(1, 4),
	}, true
}

// newProjection returns a fresh projection over up to three columns of t.
func (g *Generator) newProjection(t *catalog.Table) sqltree.ProjectionDef {
	sel := &sqltree.Select{}
	fields := random.Sample(g.rng, topLevelFields(t, false), 3)
	for _, f := range fields {
		sel.Items = append(sel.Items, sqltree.SelectItem{Expr: sqltree.ColRef(f.Path)})
	}
	if len(sel.Items) == 0 {
		sel.Items = append(sel.Items, sqltree.SelectItem{Expr: &sqltree.Star{}})
	}
	for _, k := range g.expr.OrderKey(columns(t), 1) {
		sel.OrderBy = append(sel.OrderBy, sqltree.OrderItem{Expr: k})
	}
	return sqltree.ProjectionDef{ID: t.NextProjectionID(), Select: sel}
}

// newConstraint returns a fresh CHECK or ASSUME constraint over t.
func (g *Generator) newConstraint(t *catalog.Table) sqltree.ConstraintDef {
	return sqltree.ConstraintDef{
		ID:     t.NextConstraintID(),
		Assume: g.rng.NextSmallNumber() < 3,
		Expr:   g.expr.Predicate(columns(t)),
	}
}

// refresh returns a random REFRESH clause.
func (g *Generator) refresh() sqltree.RefreshDef {
	return sqltree.RefreshDef{
		Every:    g.rng.NextBool(),
		Interval: g.rng.NextSmallNumber(),
		Unit:     "SECOND",
		Append:   g.rng.NextBool(),
	}
}

// CreateView builds CREATE [OR REPLACE] [MATERIALIZED] VIEW and stages the
// view.
func (g *Generator) CreateView(ctx context.Context) *sqltree.CreateView {
	replace := g.cat.CountAttachedViews() > 3 && g.rng.NextMediumNumber() < 16
	ncols := g.rng.NextMediumNumber()%g.cfg.MaxColumns + 1
	v := &catalog.View{}
	if replace {
		old := g.cat.PickAttachedView(g.rng, nil)
		v.ID, v.DB = old.ID, old.DB
	} else {
		v.ID = g.cat.NextViewID()
		v.DB = g.hostDatabase()
	}
	v.Materialized = g.rng.NextBool()
	cv := &sqltree.CreateView{Replace: replace, View: v.Ref(), Materialized: v.Materialized}

	if v.Materialized {
		nopt := g.rng.NextSmallNumber()
		if nopt < 4 {
			v.Engine = random.Pick(g.rng, viewEngines)
		} else {
			v.Engine = sqltree.EngineMergeTree
			v.Deterministic = true
		}
		target := func(t *catalog.Table) bool {
			return uint32(len(topLevelFields(t, true))) >= ncols && (t.Deterministic || !v.Deterministic)
		}
		v.WithCols = g.cat.HasAttachedTable(target)
		hasTables := v.WithCols || g.cat.HasAttachedTable(nil)
		limit := uint32(6)
		if v.WithCols {
			limit = 9
		}
		hasTo := !replace && nopt > 6 && hasTables && g.rng.NextSmallNumber() < limit

		if hasTo {
			pred := target
			if !v.WithCols {
				pred = nil
			}
			t := g.cat.PickAttachedTable(g.rng, pred)
			ref := t.Ref()
			cv.To = &ref
			if v.WithCols {
				fields := topLevelFields(t, true)
				if g.rng.NextBool() {
					fields = random.Sample(g.rng, fields, len(fields))
				}
				for _, f := range fields[:ncols] {
					cv.Columns = append(cv.Columns, f.Path)
					v.Cols = append(v.Cols, f.Path.Col)
				}
			}
		} else {
			v.WithCols = false
			e := &sqltree.EngineDef{Engine: v.Engine}
			if v.Engine.IsMergeTree() && g.rng.NextBool() {
				e.OrderBy = []sqltree.Expr{sqltree.ColRef(sqltree.Col(0))}
			}
			cv.Engine = e
		}
		if !replace && g.rng.NextBool() {
			r := g.refresh()
			cv.Refresh = &r
			cv.Empty = g.rng.NextBool()
			v.Refreshable = true
		} else {
			cv.Populate = !hasTo && !replace && g.rng.NextSmallNumber() < 4
		}
	} else {
		v.Deterministic = g.rng.NextSmallNumber() < 9
	}

	if len(v.Cols) == 0 {
		for i := uint32(0); i < ncols; i++ {
			v.Cols = append(v.Cols, i)
		}
	}
	v.StagedNCols = uint32(len(v.Cols))
	v.Cluster = g.pickCluster(3)
	cv.Cluster = v.Cluster
	cv.Select = g.viewQuery(v)
	if g.rng.NextSmallNumber() < 3 {
		cv.Comment = g.comment()
	}

	if replace {
		g.cat.Views.StageReplacement(v.ID, v)
	} else {
		g.cat.Views.Stage(v.ID, v)
	}
	return cv
}

// viewQuery generates the query of v with v.StagedNCols output columns named
// after the view's pinned columns.
func (g *Generator) viewQuery(v *catalog.View) *sqltree.Select {
	rels := g.queryRelations(v.Deterministic, 1)
	sel := g.expr.Select(rels, expr.SelectOptions{
		Columns:          v.StagedNCols,
		Nondeterministic: !v.Deterministic,
		NoAggregates:     v.Materialized,
	})
	return matchQueryAliases(v, sel)
}

// matchQueryAliases names the output columns of sel c0..cN. With explicit
// target columns the query is wrapped as a derived table projecting
// c<i> AS c<col> for each pinned column.
func matchQueryAliases(v *catalog.View, sel *sqltree.Select) *sqltree.Select {
	for i := range sel.Items {
		sel.Items[i].Alias = sqltree.ColumnName(uint32(i))
	}
	if !v.WithCols {
		return sel
	}
	outer := &sqltree.Select{From: []sqltree.FromItem{{Subquery: sel}}}
	for i, col := range v.Cols {
		outer.Items = append(outer.Items, sqltree.SelectItem{
			Expr:  sqltree.ColRef(sqltree.Col(uint32(i))),
			Alias: sqltree.ColumnName(col),
		})
	}
	return outer
}

// CreateDatabase builds CREATE DATABASE and stages the database.
func (g *Generator) CreateDatabase(ctx context.Context) *sqltree.CreateDatabase {
	d := &catalog.Database{ID: g.cat.NextDatabaseID()}
	engines := []sqltree.DatabaseEngine{sqltree.DatabaseAtomic, sqltree.DatabaseMemory}
	if g.cfg.Replicated {
		engines = append(engines, sqltree.DatabaseReplicated)
	}
	if g.cfg.Shared {
		engines = append(engines, sqltree.DatabaseShared)
	}
	diskBackups := g.backupsOn(sqltree.TargetDisk)
	if len(diskBackups) > 0 {
		engines = append(engines, sqltree.DatabaseBackup)
	}
	d.Engine = random.Pick(g.rng, engines)
	cd := &sqltree.CreateDatabase{Database: d.Ref(), Engine: d.Engine}

	switch d.Engine {
	case sqltree.DatabaseReplicated:
		cd.Args = []sqltree.Expr{
			sqltree.Lit(sqltree.Quote(fmt.Sprintf("/clickhouse/databases/%s", sqltree.DatabaseName(d.ID)))),
			sqltree.Lit("'{shard}'"),
			sqltree.Lit("'{replica}'"),
		}
		d.Cluster = g.pickCluster(9)
	case sqltree.DatabaseShared:
		d.Cluster = g.pickCluster(9)
	case sqltree.DatabaseBackup:
		b := random.Pick(g.rng, diskBackups)
		source := "default"
		if ids := sortedKeys(b.Databases); len(ids) > 0 && g.rng.NextSmallNumber() >= 3 {
			source = sqltree.DatabaseName(random.Pick(g.rng, ids))
		}
		d.BackupNumber = b.Number
		cd.Args = []sqltree.Expr{
			sqltree.Lit(sqltree.Quote(source)),
			sqltree.Lit(sqltree.BackupDestination(b.Target, b.Params)),
		}
		d.Cluster = g.pickCluster(4)
	default:
		d.Cluster = g.pickCluster(4)
	}
	cd.Cluster = d.Cluster
	if g.rng.NextSmallNumber() < 3 {
		d.Comment = g.comment()
		cd.Comment = d.Comment
	}
	g.cat.Databases.Stage(d.ID, d)
	return cd
}

// CreateFunction builds CREATE FUNCTION and stages the function.
func (g *Generator) CreateFunction(ctx context.Context) *sqltree.CreateFunction {
	f := &catalog.Function{ID: g.cat.NextFunctionID()}
	limits := g.cfg.Expr
	if limits.MaxWidth == 0 {
		limits = expr.DefaultLimits
	}
	f.Arity = min(limits.MaxWidth, g.rng.NextMediumNumber()%g.cfg.MaxColumns+1)
	f.Deterministic = g.rng.NextBool()
	params := make([]string, f.Arity)
	for i := range params {
		params[i] = "p" + strconv.Itoa(i)
	}
	body := g.expr.LambdaBody(params)
	if !f.Deterministic {
		body = sqltree.Call("tuple", body, sqltree.Call("rand"))
	}
	f.Cluster = g.pickCluster(4)
	g.cat.Functions.Stage(f.ID, f)
	return &sqltree.CreateFunction{Function: f.Ref(), Params: params, Body: body, Cluster: f.Cluster}
}

// CreateDictionary builds CREATE [OR REPLACE] DICTIONARY over an attached
// table and stages the dictionary.
func (g *Generator) CreateDictionary(ctx context.Context) *sqltree.CreateDictionary {
	replace := g.cat.CountAttachedDictionaries() > 3 && g.rng.NextMediumNumber() < 16
	d := &catalog.Dictionary{}
	if replace {
		old := g.cat.PickAttachedDictionary(g.rng, nil)
		d.ID, d.DB = old.ID, old.DB
	} else {
		d.ID = g.cat.NextDictionaryID()
		d.DB = g.hostDatabase()
	}

	src := g.cat.PickAttachedTable(g.rng, func(t *catalog.Table) bool { return len(topLevelFields(t, false)) > 0 })
	d.Source = src.Ref()
	d.Deterministic = src.Deterministic
	fields := topLevelFields(src, false)
	n := min(len(fields), int(g.rng.RandomInt(1, g.cfg.MaxColumns)))
	d.Fields = random.Sample(g.rng, fields, n)

	cd := &sqltree.CreateDictionary{
		Replace:     replace,
		Dictionary:  d.Ref(),
		PrimaryKey:  []sqltree.ColumnPath{d.Fields[0].Path},
		Source:      d.Source,
		LifetimeMin: g.rng.RandomInt(0, 10),
	}
	cd.LifetimeMax = cd.LifetimeMin + g.rng.RandomInt(0, 10)
	for _, f := range d.Fields {
		cd.Columns = append(cd.Columns, sqltree.DictionaryColumn{Path: f.Path, Type: f.Type})
	}
	if s, ok := d.Fields[0].Type.(sqltree.Scalar); ok && s.Name == "UInt64" {
		d.Layout = random.Pick(g.rng, simpleLayouts)
	} else {
		d.Layout = random.Pick(g.rng, complexLayouts)
	}
	cd.Layout = d.Layout
	d.Cluster = g.pickCluster(4)
	cd.Cluster = d.Cluster
	if g.rng.NextSmallNumber() < 3 {
		cd.Comment = g.comment()
	}

	if replace {
		g.cat.Dictionaries.StageReplacement(d.ID, d)
	} else {
		g.cat.Dictionaries.Stage(d.ID, d)
	}
	return cd
}
