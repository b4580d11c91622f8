package generator

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/expr"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

var selectFormats = []string{"TabSeparated", "CSV", "JSONEachRow", "Pretty", "Values", "Vertical"}

// NextStatement builds the next top-level statement: a transaction marker,
// an EXPLAIN, or a plain query.
func (g *Generator) NextStatement(ctx context.Context) *sqltree.Statement {
	inTxn := g.cat.InTransaction
	return choose(g.rng, []branch[*sqltree.Statement]{
		{"start_transaction", on(!inTxn, 2), func() *sqltree.Statement {
			return &sqltree.Statement{Txn: sqltree.TxnStart}
		}},
		{"commit", on(inTxn, 50), func() *sqltree.Statement {
			if g.rng.NextMediumNumber() <= 70 {
				return &sqltree.Statement{Txn: sqltree.TxnCommit}
			}
			return &sqltree.Statement{Txn: sqltree.TxnRollback}
		}},
		{"explain", 10, func() *sqltree.Statement {
			return g.Explain(ctx)
		}},
		{"run_query", 120, func() *sqltree.Statement {
			return &sqltree.Statement{Query: g.NextQuery(ctx)}
		}},
	})
}

// NextQuery picks one statement kind among the feasible ones and builds it.
func (g *Generator) NextQuery(ctx context.Context) sqltree.Stmt {
	return choose(g.rng, g.queryBranches(ctx))
}

// queryBranches lists every statement kind in declaration order, weighted
// by the current catalog.
func (g *Generator) queryBranches(ctx context.Context) []branch[sqltree.Stmt] {
	c := g.cat
	tables := c.CountAttachedTables()
	views := c.CountAttachedViews()
	dicts := c.CountAttachedDictionaries()
	dbs := c.CountAttachedDatabases()
	functions := c.Functions.Len()
	hasKeyedTable := c.HasAttachedTable(func(t *catalog.Table) bool { return len(topLevelFields(t, false)) > 0 })

	return []branch[sqltree.Stmt]{
		{"create_table", on(uint32(c.Tables.Len()) < g.cfg.MaxTables, 6), func() sqltree.Stmt { return g.CreateTable(ctx) }},
		{"create_view", on(uint32(c.Views.Len()) < g.cfg.MaxViews, 10), func() sqltree.Stmt { return g.CreateView(ctx) }},
		{"drop", on(tables > 3 || views > 3 || dicts > 3 || dbs > 3 || functions > 3, 2), func() sqltree.Stmt { return g.Drop(ctx) }},
		{"insert", on(c.HasAttachedTable(insertable), 180), func() sqltree.Stmt { return g.Insert(ctx) }},
		{"light_delete", on(c.HasAttachedTable(mergeTree), 6), func() sqltree.Stmt { return g.LightDelete(ctx) }},
		{"truncate", on(tables > 0 || dbs > 0, 2), func() sqltree.Stmt { return g.Truncate(ctx) }},
		{"optimize", on(c.HasAttachedTable(mergeTree), 2), func() sqltree.Stmt { return g.Optimize(ctx) }},
		{"check", on(tables > 0, 2), func() sqltree.Stmt { return g.Check(ctx) }},
		{"desc", 2, func() sqltree.Stmt { return g.Desc(ctx) }},
		{"exchange", on(len(c.AttachedTables(exchangeable)) > 1, 1), func() sqltree.Stmt { return g.Exchange(ctx) }},
		{"alter", on(c.HasAttachedTable(alterable) || views > 0, 6), func() sqltree.Stmt { return g.Alter(ctx) }},
		{"set_values", on(g.settings.Has(settings.Server), 5), func() sqltree.Stmt { return g.SetValues(ctx) }},
		{"attach", on(c.HasDetached(), 2), func() sqltree.Stmt { return g.Attach(ctx) }},
		{"detach", on(tables > 3 || views > 3 || dicts > 3 || dbs > 3, 2), func() sqltree.Stmt { return g.Detach(ctx) }},
		{"create_database", on(uint32(c.Databases.Len()) < g.cfg.MaxDatabases, 2), func() sqltree.Stmt { return g.CreateDatabase(ctx) }},
		{"create_function", on(uint32(functions) < g.cfg.MaxFunctions, 5), func() sqltree.Stmt { return g.CreateFunction(ctx) }},
		{"system", 1, func() sqltree.Stmt { return g.SystemCommand(ctx) }},
		{"backup_or_restore", 1, func() sqltree.Stmt { return g.BackupOrRestore(ctx) }},
		{"create_dictionary", on(uint32(c.Dictionaries.Len()) < g.cfg.MaxDictionaries && hasKeyedTable, 10), func() sqltree.Stmt { return g.CreateDictionary(ctx) }},
		{"select", 800, func() sqltree.Stmt { return g.TopSelect(ctx) }},
	}
}

// TopSelect builds a standalone SELECT over up to three relations.
func (g *Generator) TopSelect(ctx context.Context) *sqltree.SelectStmt {
	s := &sqltree.SelectStmt{
		Select: g.expr.Select(g.queryRelations(false, 3), expr.SelectOptions{
			Columns:          g.rng.NextSmallNumber()%5 + 1,
			Nondeterministic: true,
		}),
	}
	if g.rng.NextSmallNumber() < 3 {
		s.Select.Settings = g.settings.Pick(g.rng, settings.Server, 2)
	}
	if g.rng.NextSmallNumber() < 3 {
		s.Format = random.Pick(g.rng, selectFormats)
	}
	return s
}

// SetValues builds SET over random server settings.
func (g *Generator) SetValues(ctx context.Context) *sqltree.SetValues {
	return &sqltree.SetValues{Settings: g.settings.Pick(g.rng, settings.Server, 3)}
}

// queryRelations picks between one and limit relations among the attached
// tables, views and dictionaries, aliased x0, x1, ... With deterministic
// set only deterministic sources qualify. It returns nil when nothing
// qualifies.
func (g *Generator) queryRelations(deterministicOnly bool, limit uint32) []expr.Relation {
	var pool []func(alias string) expr.Relation
	for _, t := range g.cat.AttachedTables(nil) {
		if deterministicOnly && !t.Deterministic {
			continue
		}
		pool = append(pool, func(alias string) expr.Relation {
			rel := expr.TableRelation(t, alias)
			rel.Item.Final = t.Engine.SupportsFinal() && g.rng.NextBool()
			return rel
		})
	}
	for _, v := range g.cat.AttachedViews(nil) {
		if deterministicOnly && !v.Deterministic {
			continue
		}
		pool = append(pool, func(alias string) expr.Relation { return expr.ViewRelation(v, alias) })
	}
	for _, d := range g.cat.AttachedDictionaries(nil) {
		if deterministicOnly && !d.Deterministic {
			continue
		}
		pool = append(pool, func(alias string) expr.Relation { return expr.DictionaryRelation(d, alias) })
	}
	if len(pool) == 0 {
		return nil
	}
	n := g.rng.RandomInt(1, max(limit, 1))
	var rels []expr.Relation
	for i := uint32(0); i < n; i++ {
		rels = append(rels, random.Pick(g.rng, pool)("x"+uitoa(i)))
	}
	return rels
}

var explainKinds = []sqltree.ExplainKind{
	sqltree.ExplainAST, sqltree.ExplainSyntax, sqltree.ExplainQueryTree,
	sqltree.ExplainPlan, sqltree.ExplainPipeline, sqltree.ExplainEstimate,
}

var explainOptionNames = []string{
	"graph", "optimize", "oneline", "dump_ast", "dump_passes", "dump_tree",
	"run_passes", "passes", "distributed", "sorting", "json", "description",
	"indexes", "keep_logical_steps", "actions", "header", "compact",
}

const explainPasses = 7

// explainOptions maps an EXPLAIN kind to the indexes of the options it
// accepts.
func explainOptions(kind sqltree.ExplainKind) []int {
	switch kind {
	case sqltree.ExplainAST:
		return []int{0, 1}
	case sqltree.ExplainSyntax:
		return []int{2}
	case sqltree.ExplainQueryTree:
		return []int{3, 4, 5, 6, 7}
	case sqltree.ExplainPlan, sqltree.ExplainEstimate:
		return []int{1, 8, 9, 10, 11, 12, 13, 14, 15}
	case sqltree.ExplainPipeline:
		return []int{0, 15, 16}
	}
	return []int{1, 9, 10, 11, 12, 13, 14, 15}
}

// Explain wraps a random query in EXPLAIN.
func (g *Generator) Explain(ctx context.Context) *sqltree.Statement {
	st := &sqltree.Statement{Explain: true}
	if g.rng.NextSmallNumber() < 9 {
		st.ExplainKind = random.Pick(g.rng, explainKinds)
	}
	if g.rng.NextBool() {
		valid := explainOptions(st.ExplainKind)
		for _, i := range random.Sample(g.rng, valid, g.rng.Intn(len(valid))+1) {
			opt := sqltree.ExplainOption{Name: explainOptionNames[i], Value: g.rng.RandomInt(0, 1)}
			if i == explainPasses {
				opt.Value = g.rng.RandomInt(0, 32)
			}
			st.ExplainOpts = append(st.ExplainOpts, opt)
		}
	}
	st.Query = g.NextQuery(ctx)
	return st
}
