package generator

import (
	"context"
	"strconv"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Insert builds INSERT INTO an attached table, either directly or through a
// remote() table function looping back to the same server.
func (g *Generator) Insert(ctx context.Context) *sqltree.Insert {
	t := g.cat.PickAttachedTable(g.rng, insertable)
	fields := t.Fields(true)
	fields = random.Sample(g.rng, fields, len(fields))

	ins := &sqltree.Insert{Table: t.Ref(), Columns: paths(fields)}
	if !t.Temporary && g.rng.NextMediumNumber() >= 81 {
		ins.Function = g.remote(t)
	}

	n := g.rng.NextLargeNumber()
	switch {
	case n < 801:
		rows := g.rng.RandomInt(g.cfg.MinInsertRows, g.cfg.MaxInsertRows)
		for i := uint32(0); i < rows; i++ {
			ins.Rows = append(ins.Rows, g.valuesRow(t, fields))
		}
	case n < 901:
		ins.Random = &sqltree.GenerateRandom{
			Structure:       expr.Structure(fields),
			Seed:            uint64(g.rng.NextUint32()),
			MaxStringLength: g.rng.RandomInt(1, 8192),
			MaxArrayLength:  g.rng.RandomInt(0, 10),
			Limit:           g.rng.RandomInt(g.cfg.MinInsertRows, g.cfg.MaxInsertRows),
		}
	case n < 951:
		ins.Select = g.expr.Select(g.queryRelations(t.Deterministic, 2), expr.SelectOptions{
			Columns:          uint32(len(fields)),
			Nondeterministic: !t.Deterministic,
		})
	default:
		rows := g.rng.NextSmallNumber()%3 + 1
		for i := uint32(0); i < rows; i++ {
			row := make([]sqltree.Expr, len(fields))
			for j := range fields {
				row[j] = g.expr.Expr(nil, !t.Deterministic)
			}
			ins.Rows = append(ins.Rows, row)
		}
	}
	ins.Settings = g.maybeSettings(settings.Server)
	return ins
}

// remote returns remote('host', db, 'tN') addressing t.
func (g *Generator) remote(t *catalog.Table) *sqltree.TableFunction {
	var db sqltree.Expr = sqltree.Call("currentDatabase")
	if t.DB.Valid {
		db = sqltree.Lit(sqltree.Quote(sqltree.DatabaseName(t.DB.ID)))
	}
	return &sqltree.TableFunction{
		Name: "remote",
		Args: []sqltree.Expr{
			sqltree.Lit(sqltree.Quote(g.cfg.RemoteHost)),
			db,
			sqltree.Lit(sqltree.Quote(t.Ref().Name())),
		},
	}
}

// valuesRow returns one VALUES tuple for fields. Sign columns get +-1 and
// is_deleted columns 0 or 1 so that collapsing and replacing engines accept
// the row.
func (g *Generator) valuesRow(t *catalog.Table, fields []catalog.Field) []sqltree.Expr {
	row := make([]sqltree.Expr, len(fields))
	for i, f := range fields {
		col, _ := t.Columns.Get(f.Path.Col)
		switch {
		case col != nil && col.Default == sqltree.DefaultValue && g.rng.NextMediumNumber() < 6,
			g.rng.NextLargeNumber() < 2:
			row[i] = sqltree.Lit("DEFAULT")
		case f.Special == catalog.RoleSign:
			row[i] = sqltree.Lit(random.Pick(g.rng, []string{"1", "-1"}))
		case f.Special == catalog.RoleIsDeleted:
			row[i] = sqltree.Lit(random.Pick(g.rng, []string{"0", "1"}))
		default:
			row[i] = g.expr.Literal(f.Type)
		}
	}
	return row
}

// LightDelete builds DELETE FROM over an attached MergeTree table.
func (g *Generator) LightDelete(ctx context.Context) *sqltree.LightDelete {
	t := g.cat.PickAttachedTable(g.rng, mergeTree)
	return &sqltree.LightDelete{
		Table:     t.Ref(),
		Partition: g.maybePartition(ctx, t, false),
		Where:     g.updateDeleteWhere(t),
		Cluster:   t.Cluster,
		Settings:  g.maybeSettings(settings.Server),
	}
}

// updateDeleteWhere returns the filter of a delete or update: a predicate on
// a 9-in-10 draw, TRUE otherwise.
func (g *Generator) updateDeleteWhere(t *catalog.Table) sqltree.Expr {
	if g.rng.NextSmallNumber() < 10 {
		return g.expr.Predicate(columns(t))
	}
	return sqltree.True()
}

// Truncate builds TRUNCATE over a table, all tables of a database, or a
// database.
func (g *Generator) Truncate(ctx context.Context) *sqltree.Truncate {
	hasDB := g.cat.HasAttachedDatabase(nil)
	tr := choose(g.rng, []branch[*sqltree.Truncate]{
		{"table", on(g.cat.HasAttachedTable(nil), 980), func() *sqltree.Truncate {
			t := g.cat.PickAttachedTable(g.rng, nil)
			return &sqltree.Truncate{Object: t.Ref(), Cluster: t.Cluster}
		}},
		{"all_tables", on(hasDB, 15), func() *sqltree.Truncate {
			d := g.cat.PickAttachedDatabase(g.rng, nil)
			return &sqltree.Truncate{Object: d.Ref(), AllTables: true, Cluster: d.Cluster}
		}},
		{"database", on(hasDB, 5), func() *sqltree.Truncate {
			d := g.cat.PickAttachedDatabase(g.rng, nil)
			return &sqltree.Truncate{Object: d.Ref(), Cluster: d.Cluster}
		}},
	})
	tr.Settings = g.maybeSettings(settings.Server)
	return tr
}

// Optimize builds OPTIMIZE TABLE over an attached MergeTree table.
func (g *Generator) Optimize(ctx context.Context) *sqltree.Optimize {
	t := g.cat.PickAttachedTable(g.rng, mergeTree)
	opt := &sqltree.Optimize{Table: t.Ref(), Cluster: t.Cluster}
	if g.rng.NextBool() {
		opt.Partition = g.tablePartition(ctx, t, false, false)
	}
	opt.Cleanup = g.rng.NextSmallNumber() < 3
	if g.rng.NextSmallNumber() < 4 {
		opt.Dedup = g.dedup(t)
	}
	opt.Final = (t.Engine.SupportsFinal() || t.IsMergeTree()) && g.rng.NextSmallNumber() < 3
	opt.Settings = g.maybeSettings(settings.Server)
	return opt
}

func (g *Generator) dedup(t *catalog.Table) *sqltree.Dedup {
	fields := topLevelFields(t, false)
	pick := func() []sqltree.ColumnPath {
		if len(fields) == 0 {
			return nil
		}
		return paths(random.Sample(g.rng, fields, int(g.rng.RandomInt(1, uint32(min(len(fields), 4))))))
	}
	n := g.rng.NextMediumNumber()
	switch {
	case n < 26:
		return &sqltree.Dedup{Columns: pick()}
	case n < 51:
		return &sqltree.Dedup{All: true, Except: pick()}
	case n < 76:
		return &sqltree.Dedup{All: true}
	}
	return &sqltree.Dedup{}
}

// Check builds CHECK TABLE over any attached table.
func (g *Generator) Check(ctx context.Context) *sqltree.Check {
	t := g.cat.PickAttachedTable(g.rng, nil)
	chk := &sqltree.Check{Table: t.Ref()}
	if t.IsMergeTree() && g.rng.NextBool() {
		chk.Partition = g.tablePartition(ctx, t, true, false)
	}
	chk.Settings = g.maybeSettings(settings.Server)
	if g.rng.NextSmallNumber() < 3 {
		chk.Settings = append(chk.Settings, sqltree.SettingValue{
			Name:  "check_query_single_value_result",
			Value: random.Pick(g.rng, []string{"0", "1"}),
		})
	}
	return chk
}

// Desc builds DESCRIBE over a table, a view, a query, a table function or a
// system table.
func (g *Generator) Desc(ctx context.Context) *sqltree.Desc {
	object := func(ref sqltree.ObjectRef) *sqltree.Desc { return &sqltree.Desc{Object: &ref} }
	d := choose(g.rng, []branch[*sqltree.Desc]{
		{"table", on(g.cat.HasAttachedTable(nil), 10), func() *sqltree.Desc {
			return object(g.cat.PickAttachedTable(g.rng, nil).Ref())
		}},
		{"view", on(g.cat.HasAttachedView(nil), 10), func() *sqltree.Desc {
			return object(g.cat.PickAttachedView(g.rng, nil).Ref())
		}},
		{"query", 5, func() *sqltree.Desc {
			return &sqltree.Desc{Select: g.expr.Select(g.queryRelations(false, 2), expr.SelectOptions{
				Columns:          g.rng.NextLargeNumber()%5 + 1,
				Nondeterministic: true,
			})}
		}},
		{"function", 5, func() *sqltree.Desc {
			return &sqltree.Desc{Function: g.tableFunction()}
		}},
		{"system", on(len(g.cfg.SystemTables) > 0, 3), func() *sqltree.Desc {
			return object(sqltree.SystemTable(random.Pick(g.rng, g.cfg.SystemTables)))
		}},
	})
	d.Settings = g.maybeSettings(settings.Server)
	if g.rng.NextSmallNumber() < 3 {
		d.Settings = append(d.Settings, sqltree.SettingValue{
			Name:  "describe_include_subcolumns",
			Value: random.Pick(g.rng, []string{"0", "1"}),
		})
	}
	return d
}

// tableFunction returns numbers(n) or a generateRandom over fresh types.
func (g *Generator) tableFunction() *sqltree.TableFunction {
	if g.rng.NextBool() {
		return &sqltree.TableFunction{
			Name: "numbers",
			Args: []sqltree.Expr{sqltree.Lit(strconv.Itoa(int(g.rng.NextLargeNumber())))},
		}
	}
	n := g.rng.NextSmallNumber()%3 + 1
	fields := make([]catalog.Field, n)
	for i := range fields {
		fields[i] = catalog.Field{Path: sqltree.Col(uint32(i)), Type: g.expr.Scalar()}
	}
	return &sqltree.TableFunction{
		Name: "generateRandom",
		Args: []sqltree.Expr{sqltree.Lit(sqltree.Quote(expr.Structure(fields)))},
	}
}

// Exchange builds EXCHANGE TABLES over two exchangeable tables.
func (g *Generator) Exchange(ctx context.Context) *sqltree.Exchange {
	pair := random.Sample(g.rng, g.cat.AttachedTables(exchangeable), 2)
	ex := &sqltree.Exchange{First: pair[0].Ref(), Second: pair[1].Ref()}
	if pair[0].Cluster != "" && pair[0].Cluster == pair[1].Cluster {
		ex.Cluster = pair[0].Cluster
	}
	ex.Settings = g.maybeSettings(settings.Server)
	return ex
}

// Drop builds DROP over a table, view, dictionary, database or function.
func (g *Generator) Drop(ctx context.Context) *sqltree.Drop {
	d := choose(g.rng, []branch[*sqltree.Drop]{
		{"table", on(g.cat.CountAttachedTables() > 3, 10), func() *sqltree.Drop {
			t := g.cat.PickAttachedTable(g.rng, nil)
			return &sqltree.Drop{Object: t.Ref(), Temporary: t.Temporary, Cluster: t.Cluster}
		}},
		{"view", on(g.cat.CountAttachedViews() > 3, 10), func() *sqltree.Drop {
			v := g.cat.PickAttachedView(g.rng, nil)
			return &sqltree.Drop{Object: v.Ref(), Cluster: v.Cluster}
		}},
		{"dictionary", on(g.cat.CountAttachedDictionaries() > 3, 10), func() *sqltree.Drop {
			dict := g.cat.PickAttachedDictionary(g.rng, nil)
			return &sqltree.Drop{Object: dict.Ref(), Cluster: dict.Cluster}
		}},
		{"database", on(g.cat.CountAttachedDatabases() > 3, 2), func() *sqltree.Drop {
			db := g.cat.PickAttachedDatabase(g.rng, nil)
			return &sqltree.Drop{Object: db.Ref(), Cluster: db.Cluster}
		}},
		{"function", on(g.cat.Functions.Len() > 3, 1), func() *sqltree.Drop {
			f := g.cat.PickFunction(g.rng)
			return &sqltree.Drop{Object: f.Ref(), Cluster: f.Cluster}
		}},
	})
	d.IfExists = g.rng.NextSmallNumber() < 3
	if d.Object.Kind != sqltree.KindFunction {
		d.Sync = g.rng.NextSmallNumber() < 3
		d.Settings = g.maybeSettings(settings.Server)
	}
	return d
}

// Attach builds ATTACH over a detached, not permanently detached object.
func (g *Generator) Attach(ctx context.Context) *sqltree.Attach {
	tables := g.cat.DetachedTables()
	views := g.cat.DetachedViews()
	dicts := g.cat.DetachedDictionaries()
	dbs := g.cat.DetachedDatabases()
	a := choose(g.rng, []branch[*sqltree.Attach]{
		{"table", on(len(tables) > 0, 10), func() *sqltree.Attach {
			t := random.Pick(g.rng, tables)
			return &sqltree.Attach{Object: t.Ref(), Cluster: t.Cluster}
		}},
		{"view", on(len(views) > 0, 10), func() *sqltree.Attach {
			v := random.Pick(g.rng, views)
			return &sqltree.Attach{Object: v.Ref(), Cluster: v.Cluster}
		}},
		{"dictionary", on(len(dicts) > 0, 10), func() *sqltree.Attach {
			d := random.Pick(g.rng, dicts)
			return &sqltree.Attach{Object: d.Ref(), Cluster: d.Cluster}
		}},
		{"database", on(len(dbs) > 0, 2), func() *sqltree.Attach {
			d := random.Pick(g.rng, dbs)
			return &sqltree.Attach{Object: d.Ref(), Cluster: d.Cluster}
		}},
	})
	a.Settings = g.maybeSettings(settings.Server)
	return a
}

// Detach builds DETACH over an attached object.
func (g *Generator) Detach(ctx context.Context) *sqltree.Detach {
	d := choose(g.rng, []branch[*sqltree.Detach]{
		{"table", on(g.cat.CountAttachedTables() > 3, 10), func() *sqltree.Detach {
			t := g.cat.PickAttachedTable(g.rng, nil)
			return &sqltree.Detach{Object: t.Ref(), Cluster: t.Cluster}
		}},
		{"view", on(g.cat.CountAttachedViews() > 3, 10), func() *sqltree.Detach {
			v := g.cat.PickAttachedView(g.rng, nil)
			return &sqltree.Detach{Object: v.Ref(), Cluster: v.Cluster}
		}},
		{"dictionary", on(g.cat.CountAttachedDictionaries() > 3, 10), func() *sqltree.Detach {
			dict := g.cat.PickAttachedDictionary(g.rng, nil)
			return &sqltree.Detach{Object: dict.Ref(), Cluster: dict.Cluster}
		}},
		{"database", on(g.cat.CountAttachedDatabases() > 3, 2), func() *sqltree.Detach {
			db := g.cat.PickAttachedDatabase(g.rng, nil)
			return &sqltree.Detach{Object: db.Ref(), Cluster: db.Cluster}
		}},
	})
	d.Permanently = d.Object.Kind != sqltree.KindDatabase && g.rng.NextSmallNumber() < 4
	d.Sync = g.rng.NextSmallNumber() < 4
	d.Settings = g.maybeSettings(settings.Server)
	return d
}

type systemTarget uint8

const (
	targetNone systemTarget = iota
	targetMergeTree
	targetRefreshable
	targetFunction
	targetDatabase
)

type systemCommand struct {
	command string
	weight  uint32
	target  systemTarget
}

var systemCommands = []systemCommand{
	{"RELOAD EMBEDDED DICTIONARIES", 1, targetNone},
	{"RELOAD DICTIONARIES", 3, targetNone},
	{"RELOAD MODELS", 3, targetNone},
	{"RELOAD FUNCTIONS", 3, targetNone},
	{"RELOAD FUNCTION", 8, targetFunction},
	{"RELOAD ASYNCHRONOUS METRICS", 3, targetNone},
	{"DROP DNS CACHE", 3, targetNone},
	{"DROP MARK CACHE", 3, targetNone},
	{"DROP UNCOMPRESSED CACHE", 9, targetNone},
	{"DROP COMPILED EXPRESSION CACHE", 3, targetNone},
	{"DROP QUERY CACHE", 3, targetNone},
	{"DROP FORMAT SCHEMA CACHE", 3, targetNone},
	{"FLUSH LOGS", 3, targetNone},
	{"RELOAD CONFIG", 3, targetNone},
	{"RELOAD USERS", 3, targetNone},
	{"STOP TTL MERGES", 8, targetMergeTree},
	{"START TTL MERGES", 8, targetMergeTree},
	{"STOP MOVES", 8, targetMergeTree},
	{"START MOVES", 8, targetMergeTree},
	{"WAIT LOADING PARTS", 8, targetMergeTree},
	{"STOP FETCHES", 8, targetMergeTree},
	{"START FETCHES", 8, targetMergeTree},
	{"STOP REPLICATED SENDS", 8, targetMergeTree},
	{"START REPLICATED SENDS", 8, targetMergeTree},
	{"SYNC REPLICA", 8, targetMergeTree},
	{"SYNC DATABASE REPLICA", 8, targetDatabase},
	{"RESTART REPLICA", 8, targetMergeTree},
	{"RESTORE REPLICA", 8, targetMergeTree},
	{"RESTART REPLICAS", 3, targetNone},
	{"DROP FILESYSTEM CACHE", 3, targetNone},
	{"SYNC FILE CACHE", 1, targetNone},
	{"LOAD PRIMARY KEY", 3, targetNone},
	{"LOAD PRIMARY KEY", 8, targetMergeTree},
	{"UNLOAD PRIMARY KEY", 3, targetNone},
	{"UNLOAD PRIMARY KEY", 8, targetMergeTree},
	{"REFRESH VIEW", 8, targetRefreshable},
	{"STOP VIEWS", 3, targetNone},
	{"STOP VIEW", 8, targetRefreshable},
	{"START VIEWS", 3, targetNone},
	{"START VIEW", 8, targetRefreshable},
	{"CANCEL VIEW", 8, targetRefreshable},
	{"WAIT VIEW", 8, targetRefreshable},
	{"PREWARM MARK CACHE", 8, targetMergeTree},
	{"PREWARM PRIMARY INDEX CACHE", 8, targetMergeTree},
	{"DROP CONNECTIONS CACHE", 3, targetNone},
	{"DROP PRIMARY INDEX CACHE", 3, targetNone},
	{"DROP INDEX MARK CACHE", 3, targetNone},
	{"DROP INDEX UNCOMPRESSED CACHE", 3, targetNone},
	{"DROP MMAP CACHE", 3, targetNone},
	{"DROP PAGE CACHE", 3, targetNone},
	{"DROP SCHEMA CACHE", 3, targetNone},
	{"DROP S3 CLIENT CACHE", 3, targetNone},
	{"FLUSH ASYNC INSERT QUEUE", 3, targetNone},
	{"SYNC FILESYSTEM CACHE", 3, targetNone},
	{"DROP CACHE", 3, targetNone},
	{"DROP SKIP INDEX CACHE", 3, targetNone},
}

// SystemCommand builds a SYSTEM statement. Commands that address an object
// are only eligible when such an object exists.
func (g *Generator) SystemCommand(ctx context.Context) *sqltree.SystemCommand {
	refreshable := func(v *catalog.View) bool { return v.Refreshable }
	available := map[systemTarget]bool{
		targetNone:        true,
		targetMergeTree:   g.cat.HasAttachedTable(mergeTree),
		targetRefreshable: g.cat.HasAttachedView(refreshable),
		targetFunction:    g.cat.Functions.Len() > 0,
		targetDatabase:    g.cat.HasAttachedDatabase(nil),
	}
	weights := make([]uint32, len(systemCommands))
	for i, c := range systemCommands {
		weights[i] = on(available[c.target], c.weight)
	}
	c := systemCommands[Pick(g.rng, weights)]

	sc := &sqltree.SystemCommand{Command: c.command, Cluster: g.pickCluster(3)}
	var ref sqltree.ObjectRef
	switch c.target {
	case targetNone:
		return sc
	case targetMergeTree:
		ref = g.cat.PickAttachedTable(g.rng, mergeTree).Ref()
	case targetRefreshable:
		ref = g.cat.PickAttachedView(g.rng, refreshable).Ref()
	case targetFunction:
		ref = g.cat.PickFunction(g.rng).Ref()
	case targetDatabase:
		ref = g.cat.PickAttachedDatabase(g.rng, nil).Ref()
	}
	sc.Target = &ref
	return sc
}
