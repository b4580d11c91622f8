package oracle

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Protocol names, as recorded in findings.
const (
	NameCorrectness = "correctness"
	NameDumpReload  = "dump_reload"
	NameSettings    = "settings"
	NamePeer        = "peer"
)

// compare runs first and second and reports a divergence between them.
func (o *Oracle) compare(ctx context.Context, name string, first, second *sqltree.Statement) *Divergence {
	if !o.otherStepsSuccess {
		return nil
	}
	res, ok := o.ex.Query(ctx, first)
	o.ProcessFirstResult(ok, res)
	if !o.CanTestQuery() {
		return nil
	}
	return o.second(ctx, name, first, second)
}

func (o *Oracle) second(ctx context.Context, name string, first, second *sqltree.Statement) *Divergence {
	res, ok := o.ex.Query(ctx, second)
	d := o.ProcessSecondResult(ok, name, res)
	if d != nil {
		d.FirstSQL = sqltree.Format(first)
		d.SecondSQL = sqltree.Format(second)
	}
	return d
}

// RunCorrectness compares a filtered count with the sum of the same filter.
func (o *Oracle) RunCorrectness(ctx context.Context) *Divergence {
	o.Reset()
	first := o.CorrectnessFirstQuery()
	if first == nil {
		return nil
	}
	return o.compare(ctx, NameCorrectness, first, o.CorrectnessSecondQuery(first))
}

// RunDumpReload dumps a table, exports it, truncates it, imports the export
// and dumps it again.
func (o *Oracle) RunDumpReload(ctx context.Context) *Divergence {
	o.Reset()
	tables := o.catalog().AttachedTables(Dumpable)
	if len(tables) == 0 {
		return nil
	}
	t := random.Pick(o.rng, tables)
	dump := o.DumpTableContent(t)

	res, ok := o.ex.Query(ctx, dump)
	o.ProcessFirstResult(ok, res)
	if !o.CanTestQuery() {
		return nil
	}
	export := o.ExportQuery(t)
	o.SetIntermediateStepSuccess(o.ex.Execute(ctx, export))
	if o.StepFailed() {
		return nil
	}
	o.SetIntermediateStepSuccess(o.ex.Execute(ctx, o.ClearQuery(t)))
	o.SetIntermediateStepSuccess(o.ex.Execute(ctx, o.ImportQuery(t, export)))
	return o.second(ctx, NameDumpReload, dump, dump)
}

// RunSettings runs one query under two value sets of the same
// result-neutral settings.
func (o *Oracle) RunSettings(ctx context.Context) *Divergence {
	o.Reset()
	q := o.OracleSelectQuery(false)
	if q == nil {
		return nil
	}
	o.SetIntermediateStepSuccess(o.ex.Execute(ctx, o.FirstSetting()))
	res, ok := o.ex.Query(ctx, q)
	o.ProcessFirstResult(ok, res)
	if !o.CanTestQuery() {
		return nil
	}
	o.SetIntermediateStepSuccess(o.ex.Execute(ctx, o.SecondSetting()))
	return o.second(ctx, NameSettings, q, q)
}

// RunPeer compares a query over peered tables with the same query reading
// the peer copies.
func (o *Oracle) RunPeer(ctx context.Context) *Divergence {
	o.Reset()
	q := o.OracleSelectQuery(true)
	if q == nil {
		return nil
	}
	copies, rewritten := o.ReplaceQueryWithTablePeers(q)
	o.TruncatePeerTables(ctx)
	for _, c := range copies {
		o.SetIntermediateStepSuccess(o.ex.Execute(ctx, c))
	}
	o.OptimizePeerTables(ctx)
	return o.compare(ctx, NamePeer, q, rewritten)
}

// HasPeerTable reports whether an attached comparable table holds a peer
// copy.
func HasPeerTable(c *catalog.Catalog) bool {
	return c.HasAttachedTable(func(t *catalog.Table) bool { return Comparable(t) && t.HasPeer() })
}
