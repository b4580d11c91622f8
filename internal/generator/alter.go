package generator

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

var statisticsTypes = []string{"tdigest", "minmax", "uniq", "count_min"}

// Alter builds ALTER TABLE over an alterable table or an attached view.
func (g *Generator) Alter(ctx context.Context) *sqltree.AlterTable {
	hasTable := g.cat.HasAttachedTable(alterable)
	if g.cat.HasAttachedView(nil) && (!hasTable || g.rng.NextBool()) {
		return g.alterView(ctx, g.cat.PickAttachedView(g.rng, nil))
	}
	return g.alterTable(ctx, g.cat.PickAttachedTable(g.rng, alterable))
}

func (g *Generator) itemCount() int {
	if g.rng.RandomInt(1, 3) == 1 {
		return int(g.rng.RandomInt(1, 4))
	}
	return 1
}

func (g *Generator) alterView(ctx context.Context, v *catalog.View) *sqltree.AlterTable {
	at := &sqltree.AlterTable{Object: v.Ref(), Cluster: v.Cluster}
	for range g.itemCount() {
		item := choose(g.rng, []branch[sqltree.AlterItem]{
			{"refresh", on(v.Refreshable, 1), func() sqltree.AlterItem {
				return &sqltree.ModifyRefresh{Refresh: g.refresh()}
			}},
			{"query", 3, func() sqltree.AlterItem {
				if v.WithCols {
					v.StagedNCols = uint32(len(v.Cols))
				} else {
					v.StagedNCols = g.rng.NextMediumNumber()%g.cfg.MaxColumns + 1
				}
				return &sqltree.ModifyQuery{Select: g.viewQuery(v)}
			}},
		})
		at.Items = append(at.Items, item)
	}
	at.Settings = g.maybeSettings(settings.Server)
	return at
}

// alterState caches the facts about one table that gate the ALTER items.
type alterState struct {
	t          *catalog.Table
	mergeTree  bool
	peer       bool
	partitions bool
}

func (g *Generator) alterTable(ctx context.Context, t *catalog.Table) *sqltree.AlterTable {
	st := alterState{t: t, mergeTree: t.IsMergeTree(), peer: t.HasPeer()}
	if st.mergeTree {
		st.partitions = g.env.TableHasPartitions(ctx, false, t)
	}
	at := &sqltree.AlterTable{Object: t.Ref(), Cluster: t.Cluster}
	for range g.itemCount() {
		at.Items = append(at.Items, choose(g.rng, g.tableItems(ctx, st)))
	}
	at.Settings = g.maybeSettings(settings.Server)
	return at
}

// tableItems lists the ALTER TABLE sub-operations in declaration order with
// their weights for the current state of the table.
func (g *Generator) tableItems(ctx context.Context, st alterState) []branch[sqltree.AlterItem] {
	t := st.t
	mt := st.mergeTree
	ncols := t.Columns.Len()
	nidx := t.Indexes.Len()
	nproj := t.Projections.Len()
	ncons := t.Constraints.Len()
	others := g.cat.HasAttachedTable(func(o *catalog.Table) bool { return o.ID != t.ID })
	columnSettings := mt && g.settings.Has(settings.MergeTreeColumn)
	flat := len(topLevelFields(t, false)) > 0

	stats := func(action sqltree.StatisticsAction) func() sqltree.AlterItem {
		return func() sqltree.AlterItem { return g.statistics(t, action) }
	}
	indexOp := func(action sqltree.IndexAction) func() sqltree.AlterItem {
		return func() sqltree.AlterItem {
			op := &sqltree.IndexOp{Action: action, Index: random.Pick(g.rng, t.Indexes.IDs())}
			if action != sqltree.IndexDrop {
				op.Partition = g.maybePartition(ctx, t, false)
			}
			return op
		}
	}
	projectionOp := func(action sqltree.ProjectionAction) func() sqltree.AlterItem {
		return func() sqltree.AlterItem {
			op := &sqltree.ProjectionOp{Action: action, Projection: random.Pick(g.rng, t.Projections.IDs())}
			if action != sqltree.ProjectionRemove {
				op.Partition = g.maybePartition(ctx, t, false)
			}
			return op
		}
	}
	partitionOp := func(action sqltree.PartitionAction, detached bool) func() sqltree.AlterItem {
		return func() sqltree.AlterItem {
			return &sqltree.PartitionOp{Action: action, Partition: g.partitionOrAll(ctx, t, detached)}
		}
	}

	return []branch[sqltree.AlterItem]{
		{"order_by", on(mt, 3), func() sqltree.AlterItem {
			item := &sqltree.ModifyOrderBy{}
			if g.rng.NextSmallNumber() < 6 {
				item.Exprs = g.expr.OrderKey(columns(t), 3)
			}
			return item
		}},
		{"heavy_delete", 30, func() sqltree.AlterItem {
			return &sqltree.HeavyDelete{Partition: g.maybePartition(ctx, t, false), Where: g.updateDeleteWhere(t)}
		}},
		{"add_column", on(!st.peer && uint32(ncols) < g.cfg.MaxColumns, 2), func() sqltree.AlterItem {
			col, def := g.newColumn(t, t.NextColumnID(), true)
			item := &sqltree.AddColumn{Column: def}
			item.First, item.After = g.columnPlacement(t)
			t.Columns.Stage(col.ID, col)
			return item
		}},
		{"materialize_column", on(ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.MaterializeColumn{Column: g.topLevelPath(t), Partition: g.maybePartition(ctx, t, false)}
		}},
		{"drop_column", on(!st.peer && ncols > 1, 2), func() sqltree.AlterItem {
			return &sqltree.DropColumn{Column: random.Pick(g.rng, t.Fields(false)).Path}
		}},
		{"rename_column", on(!st.peer && ncols > 0, 2), func() sqltree.AlterItem {
			old := random.Pick(g.rng, t.Fields(false)).Path
			to := sqltree.Col(t.NextColumnID())
			if old.IsNested() {
				to = sqltree.SubCol(old.Col, to.Col)
			}
			return &sqltree.RenameColumn{Old: old, New: to}
		}},
		{"clear_column", on(ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.ClearColumn{Column: g.topLevelPath(t), Partition: g.maybePartition(ctx, t, false)}
		}},
		{"modify_column", on(!st.peer && len(modifiableColumns(t)) > 0, 2), func() sqltree.AlterItem {
			old := random.Pick(g.rng, modifiableColumns(t))
			col, def := g.newColumn(t, old.ID, true)
			item := &sqltree.ModifyColumn{Column: def}
			item.First, item.After = g.columnPlacement(t)
			t.Columns.StageReplacement(old.ID, col)
			return item
		}},
		{"comment_column", on(ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.CommentColumn{Column: g.topLevelPath(t), Comment: g.comment()}
		}},
		{"delete_mask", on(mt, 8), func() sqltree.AlterItem {
			item := &sqltree.ApplyDeletedMask{}
			if g.rng.NextBool() {
				item.Partition = g.tablePartition(ctx, t, false, false)
			}
			return item
		}},
		{"heavy_update", 40, func() sqltree.AlterItem {
			return g.heavyUpdate(ctx, t)
		}},
		{"add_stats", on(mt && ncols > 0, 3), stats(sqltree.StatisticsAdd)},
		{"mod_stats", on(mt && ncols > 0, 3), stats(sqltree.StatisticsModify)},
		{"drop_stats", on(mt && ncols > 0, 3), stats(sqltree.StatisticsDrop)},
		{"clear_stats", on(mt && ncols > 0, 3), stats(sqltree.StatisticsClear)},
		{"mat_stats", on(mt && ncols > 0, 3), stats(sqltree.StatisticsMaterialize)},
		{"add_idx", on(nidx < 3 && flat, 2), func() sqltree.AlterItem {
			ix, _ := g.newIndex(t)
			n := g.rng.NextSmallNumber()
			t.Indexes.Stage(ix.ID, &catalog.Index{ID: ix.ID, Type: ix.Type})
			return &sqltree.AddIndex{Index: ix, First: n >= 4 && n < 8}
		}},
		{"materialize_idx", on(nidx > 0, 2), indexOp(sqltree.IndexMaterialize)},
		{"clear_idx", on(nidx > 0, 2), indexOp(sqltree.IndexClear)},
		{"drop_idx", on(nidx > 0, 2), indexOp(sqltree.IndexDrop)},
		{"remove_property", on(ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.RemoveColumnProperty{
				Column:   g.topLevelPath(t),
				Property: sqltree.ColumnProperty(g.rng.RandomInt(0, uint32(sqltree.PropertySettings))),
			}
		}},
		{"column_modify_setting", on(columnSettings && ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.ModifyColumnSetting{
				Column:   g.topLevelPath(t),
				Settings: g.settings.Pick(g.rng, settings.MergeTreeColumn, 3),
			}
		}},
		{"column_remove_setting", on(columnSettings && ncols > 0, 2), func() sqltree.AlterItem {
			return &sqltree.RemoveColumnSetting{
				Column: g.topLevelPath(t),
				Names:  g.settings.Names(g.rng, settings.MergeTreeColumn, 3),
			}
		}},
		{"table_modify_setting", 2, func() sqltree.AlterItem {
			return &sqltree.ModifyTableSetting{Settings: g.settings.Pick(g.rng, g.tableSettingsCategory(t), 3)}
		}},
		{"table_remove_setting", 2, func() sqltree.AlterItem {
			return &sqltree.RemoveTableSetting{Names: g.settings.Names(g.rng, g.tableSettingsCategory(t), 3)}
		}},
		{"add_projection", on(mt && ncols > 0, 2), func() sqltree.AlterItem {
			pr := g.newProjection(t)
			t.Projections.Stage(pr.ID, &catalog.Projection{ID: pr.ID})
			return &sqltree.AddProjection{Projection: pr}
		}},
		{"remove_projection", on(mt && nproj > 0, 2), projectionOp(sqltree.ProjectionRemove)},
		{"materialize_projection", on(mt && nproj > 0, 2), projectionOp(sqltree.ProjectionMaterialize)},
		{"clear_projection", on(mt && nproj > 0, 2), projectionOp(sqltree.ProjectionClear)},
		{"add_constraint", on(ncons < 4, 2), func() sqltree.AlterItem {
			cs := g.newConstraint(t)
			t.Constraints.Stage(cs.ID, &catalog.Constraint{ID: cs.ID, Assume: cs.Assume})
			return &sqltree.AddConstraint{Constraint: cs}
		}},
		{"remove_constraint", on(ncons > 0, 2), func() sqltree.AlterItem {
			return &sqltree.RemoveConstraint{Constraint: random.Pick(g.rng, t.Constraints.IDs())}
		}},
		{"detach_partition", on(mt, 5), partitionOp(sqltree.PartitionDetach, false)},
		{"drop_partition", on(mt, 5), partitionOp(sqltree.PartitionDrop, false)},
		{"drop_detached_partition", on(mt, 5), partitionOp(sqltree.PartitionDropDetached, true)},
		{"forget_partition", on(st.partitions, 5), func() sqltree.AlterItem {
			return &sqltree.PartitionOp{Action: sqltree.PartitionForget, Partition: g.partitionID(ctx, t, false)}
		}},
		{"attach_partition", on(mt, 5), partitionOp(sqltree.PartitionAttach, true)},
		{"move_partition_to", on(st.partitions && others, 5), func() sqltree.AlterItem {
			to := g.cat.PickAttachedTable(g.rng, func(o *catalog.Table) bool { return o.ID != t.ID })
			return &sqltree.MovePartitionTo{Partition: g.partitionID(ctx, t, false), Table: to.Ref()}
		}},
		{"clear_column_partition", on(st.partitions && ncols > 0, 5), func() sqltree.AlterItem {
			return &sqltree.ClearColumnInPartition{Partition: g.partitionID(ctx, t, false), Column: g.topLevelPath(t)}
		}},
		{"freeze", on(mt, 5), func() sqltree.AlterItem {
			item := &sqltree.FreezePartition{Tag: t.NextFreezeTag()}
			if st.partitions && g.rng.NextSmallNumber() < 9 {
				p := g.partitionID(ctx, t, false)
				item.Partition = &p
			}
			return item
		}},
		{"unfreeze", on(len(t.Frozen) > 0, 7), func() sqltree.AlterItem {
			tag := random.Pick(g.rng, t.FrozenTags())
			item := &sqltree.UnfreezePartition{Tag: tag}
			if id := t.Frozen[tag]; id != "" {
				item.Partition = &sqltree.PartitionExpr{Kind: sqltree.PartitionID, Value: id}
			}
			return item
		}},
		{"clear_index_partition", on(st.partitions && nidx > 0, 5), func() sqltree.AlterItem {
			return &sqltree.ClearIndexInPartition{
				Partition: g.partitionID(ctx, t, false),
				Index:     random.Pick(g.rng, t.Indexes.IDs()),
			}
		}},
		{"move_partition", on(st.partitions && len(g.cfg.Disks) > 0, 5), func() sqltree.AlterItem {
			return &sqltree.MovePartition{Partition: g.partitionID(ctx, t, false), Destination: random.Pick(g.rng, g.cfg.Disks)}
		}},
		{"modify_ttl", on(mt && !st.peer, 5), func() sqltree.AlterItem {
			return &sqltree.ModifyTTL{TTL: *g.ttl(t)}
		}},
		{"remove_ttl", on(mt && !st.peer, 2), func() sqltree.AlterItem {
			return &sqltree.RemoveTTL{}
		}},
		{"comment_table", 2, func() sqltree.AlterItem {
			return &sqltree.CommentTable{Comment: g.comment()}
		}},
	}
}

// columnPlacement returns FIRST or AFTER a random column, or neither.
func (g *Generator) columnPlacement(t *catalog.Table) (bool, *sqltree.ColumnPath) {
	n := g.rng.NextSmallNumber()
	switch {
	case n < 4 && t.Columns.Len() > 0:
		p := g.topLevelPath(t)
		return false, &p
	case n < 8:
		return true, nil
	}
	return false, nil
}

// topLevelPath picks a committed top-level column of t.
func (g *Generator) topLevelPath(t *catalog.Table) sqltree.ColumnPath {
	return sqltree.Col(random.Pick(g.rng, t.Columns.IDs()))
}

// modifiableColumns returns the columns that may take a MODIFY COLUMN: not
// engine-owned and without a replacement staged by an earlier item.
func modifiableColumns(t *catalog.Table) []*catalog.Column {
	return t.Columns.Filter(func(c *catalog.Column) bool {
		_, staged := t.Columns.Staged(c.ID)
		return c.Special == catalog.RoleNone && !staged
	})
}

func (g *Generator) heavyUpdate(ctx context.Context, t *catalog.Table) *sqltree.HeavyUpdate {
	item := &sqltree.HeavyUpdate{Partition: g.maybePartition(ctx, t, false), Where: g.updateDeleteWhere(t)}
	fields := topLevelFields(t, true)
	if len(fields) == 0 {
		item.Assignments = []sqltree.Assignment{{Column: sqltree.Col(0), Expr: sqltree.Lit("0")}}
		return item
	}
	cols := columns(t)
	chosen := random.Sample(g.rng, fields, int(g.rng.RandomInt(1, uint32(min(len(fields), 4)))))
	for _, f := range chosen {
		var e sqltree.Expr
		if g.rng.NextSmallNumber() < 9 {
			e = g.expr.Literal(f.Type)
		} else {
			e = g.expr.Expr(cols, !t.Deterministic)
		}
		item.Assignments = append(item.Assignments, sqltree.Assignment{Column: f.Path, Expr: e})
	}
	return item
}

func (g *Generator) statistics(t *catalog.Table, action sqltree.StatisticsAction) *sqltree.Statistics {
	fields := topLevelFields(t, false)
	item := &sqltree.Statistics{Action: action}
	if len(fields) > 0 {
		item.Columns = paths(random.Sample(g.rng, fields, int(g.rng.RandomInt(1, uint32(min(len(fields), 3))))))
	} else {
		item.Columns = []sqltree.ColumnPath{g.topLevelPath(t)}
	}
	if action == sqltree.StatisticsAdd || action == sqltree.StatisticsModify {
		item.Types = random.Sample(g.rng, statisticsTypes, int(g.rng.RandomInt(1, 2)))
	}
	return item
}

// tableSettingsCategory picks where MODIFY/RESET SETTING names come from:
// MergeTree settings for MergeTree tables, server settings otherwise.
func (g *Generator) tableSettingsCategory(t *catalog.Table) settings.Category {
	if t.IsMergeTree() && g.settings.Has(settings.MergeTreeTable) && g.rng.NextSmallNumber() < 9 {
		return settings.MergeTreeTable
	}
	return settings.Server
}
