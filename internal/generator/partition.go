package generator

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// tablePartition returns a partition clause for t. When t is a MergeTree
// table with partitions, a 9-in-10 draw addresses a real partition id or,
// with allowParts and a coin flip, a part name. Otherwise the clause is
// PARTITION tuple().
func (g *Generator) tablePartition(ctx context.Context, t *catalog.Table, allowParts, detached bool) *sqltree.PartitionExpr {
	if t.IsMergeTree() && g.env.TableHasPartitions(ctx, detached, t) && g.rng.NextSmallNumber() < 9 {
		partition := !allowParts || g.rng.NextBool()
		if v := g.env.RandomPartitionOrPart(ctx, detached, partition, t); v != "" {
			kind := sqltree.PartitionID
			if !partition {
				kind = sqltree.PartitionPart
			}
			return &sqltree.PartitionExpr{Kind: kind, Value: v}
		}
	}
	return &sqltree.PartitionExpr{Kind: sqltree.PartitionTuple}
}

// partitionID addresses a random partition of t by id.
func (g *Generator) partitionID(ctx context.Context, t *catalog.Table, detached bool) sqltree.PartitionExpr {
	if v := g.env.RandomPartitionOrPart(ctx, detached, true, t); v != "" {
		return sqltree.PartitionExpr{Kind: sqltree.PartitionID, Value: v}
	}
	return sqltree.PartitionExpr{Kind: sqltree.PartitionTuple}
}

// partitionOrAll addresses a partition id, a part or every partition of t.
func (g *Generator) partitionOrAll(ctx context.Context, t *catalog.Table, detached bool) sqltree.PartitionExpr {
	has := g.env.TableHasPartitions(ctx, detached, t)
	n := g.rng.NextSmallNumber()
	switch {
	case has && n < 5:
		if v := g.env.RandomPartitionOrPart(ctx, detached, true, t); v != "" {
			return sqltree.PartitionExpr{Kind: sqltree.PartitionID, Value: v}
		}
	case has && n < 9:
		if v := g.env.RandomPartitionOrPart(ctx, detached, false, t); v != "" {
			return sqltree.PartitionExpr{Kind: sqltree.PartitionPart, Value: v}
		}
	}
	return sqltree.PartitionExpr{Kind: sqltree.PartitionAll}
}

// maybePartition returns a partition clause for t on a coin flip when t is
// in the MergeTree family.
func (g *Generator) maybePartition(ctx context.Context, t *catalog.Table, allowParts bool) *sqltree.PartitionExpr {
	if t.IsMergeTree() && g.rng.NextBool() {
		return g.tablePartition(ctx, t, allowParts, false)
	}
	return nil
}
