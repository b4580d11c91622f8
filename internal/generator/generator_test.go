package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	partitions bool
	bucket     bool
}

func (e fakeEnv) TableHasPartitions(context.Context, bool, *catalog.Table) bool { return e.partitions }

func (e fakeEnv) RandomPartitionOrPart(_ context.Context, _, partition bool, _ *catalog.Table) string {
	switch {
	case !e.partitions:
		return ""
	case partition:
		return "202401"
	}
	return "202401_1_1_0"
}

func (e fakeEnv) HasBackupBucket() bool { return e.bucket }

func int64Type() sqltree.Type {
	return sqltree.Scalar{Name: "Int64", Family: sqltree.FamilyInt}
}

func addTable(c *catalog.Catalog, engine sqltree.TableEngine, ncols int) *catalog.Table {
	t := &catalog.Table{ID: c.NextTableID(), Engine: engine, Deterministic: true}
	for i := 0; i < ncols; i++ {
		id := t.NextColumnID()
		t.Columns.Put(id, &catalog.Column{ID: id, Type: int64Type()})
	}
	c.Tables.Put(t.ID, t)
	return t
}

func newTestGenerator(seed uint64, cat *catalog.Catalog, env Environment) *Generator {
	cfg := DefaultConfig()
	cfg.Disks = []string{"default"}
	return New(cfg, cat, env, nil, random.New(seed))
}

// discardStaged drops everything a builder staged, as a failed statement
// would.
func discardStaged(c *catalog.Catalog) {
	for _, id := range c.Tables.StagedIDs() {
		c.Tables.Discard(id)
	}
	for _, id := range c.Views.StagedIDs() {
		c.Views.Discard(id)
	}
	for _, id := range c.Dictionaries.StagedIDs() {
		c.Dictionaries.Discard(id)
	}
	for _, id := range c.Databases.StagedIDs() {
		c.Databases.Discard(id)
	}
	for _, id := range c.Functions.StagedIDs() {
		c.Functions.Discard(id)
	}
	for _, t := range c.Tables.Values() {
		for _, id := range t.Columns.StagedIDs() {
			t.Columns.Discard(id)
		}
		for _, id := range t.Indexes.StagedIDs() {
			t.Indexes.Discard(id)
		}
		for _, id := range t.Projections.StagedIDs() {
			t.Projections.Discard(id)
		}
		for _, id := range t.Constraints.StagedIDs() {
			t.Constraints.Discard(id)
		}
	}
}

func session(seed uint64, n int) []string {
	cat := catalog.New()
	addTable(cat, sqltree.EngineMergeTree, 3)
	addTable(cat, sqltree.EngineMemory, 2)
	g := newTestGenerator(seed, cat, fakeEnv{partitions: true})
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sqltree.Format(g.NextStatement(context.Background())))
		discardStaged(cat)
	}
	return out
}

func TestNextStatement_Deterministic(t *testing.T) {
	first := session(42, 300)
	second := session(42, 300)
	require.Equal(t, first, second)

	other := session(43, 300)
	assert.NotEqual(t, first, other)
}

func TestNextStatement_EmptyCatalog(t *testing.T) {
	g := newTestGenerator(7, catalog.New(), fakeEnv{})
	for i := 0; i < 500; i++ {
		st := g.NextStatement(context.Background())
		require.NotEmpty(t, sqltree.Format(st))
		discardStaged(g.Catalog())
	}
}

func TestAlter_NoAddColumnAtLimit(t *testing.T) {
	cat := catalog.New()
	g := newTestGenerator(9, cat, fakeEnv{})
	tbl := addTable(cat, sqltree.EngineMergeTree, int(g.cfg.MaxColumns))

	for i := 0; i < 400; i++ {
		at := g.alterTable(context.Background(), tbl)
		for _, item := range at.Items {
			_, isAdd := item.(*sqltree.AddColumn)
			require.False(t, isAdd, "ADD COLUMN generated for a table at the column limit")
		}
		discardStaged(cat)
	}
}

func TestAlter_NoDropOfOnlyColumn(t *testing.T) {
	cat := catalog.New()
	g := newTestGenerator(10, cat, fakeEnv{})
	tbl := addTable(cat, sqltree.EngineMergeTree, 1)

	for i := 0; i < 400; i++ {
		at := g.alterTable(context.Background(), tbl)
		for _, item := range at.Items {
			_, isDrop := item.(*sqltree.DropColumn)
			require.False(t, isDrop, "DROP COLUMN generated for a single-column table")
		}
		discardStaged(cat)
	}
}

func TestAlter_PartitionOpsOnlyOnMergeTree(t *testing.T) {
	cat := catalog.New()
	g := newTestGenerator(12, cat, fakeEnv{partitions: true})
	tbl := addTable(cat, sqltree.EngineMemory, 3)

	for i := 0; i < 400; i++ {
		at := g.alterTable(context.Background(), tbl)
		for _, item := range at.Items {
			switch item.(type) {
			case *sqltree.PartitionOp, *sqltree.FreezePartition, *sqltree.ModifyTTL, *sqltree.ApplyDeletedMask:
				t.Fatalf("partition-targeting item %T generated for a Memory table", item)
			}
		}
		discardStaged(cat)
	}
}

func TestCreateTable_Stages(t *testing.T) {
	cat := catalog.New()
	g := newTestGenerator(1, cat, fakeEnv{})

	ct := g.CreateTable(context.Background())
	require.False(t, ct.Replace)
	assert.Equal(t, []uint32{ct.Table.ID}, cat.Tables.StagedIDs())
	assert.Zero(t, cat.Tables.Len())

	staged, ok := cat.Tables.Staged(ct.Table.ID)
	require.True(t, ok)
	assert.Equal(t, len(ct.Columns), staged.Columns.Len())
	assert.True(t, strings.HasPrefix(sqltree.Format(&sqltree.Statement{Query: ct}), "CREATE "))
}

func TestCreateTable_SpecialColumns(t *testing.T) {
	cat := catalog.New()
	g := newTestGenerator(2, cat, fakeEnv{})
	for i := 0; i < 300; i++ {
		ct := g.CreateTable(context.Background())
		staged, _ := cat.Tables.Staged(ct.Table.ID)
		var signs int
		for _, c := range staged.Columns.Values() {
			if c.Special == catalog.RoleSign {
				signs++
			}
		}
		switch staged.Engine {
		case sqltree.EngineCollapsingMergeTree, sqltree.EngineVersionedCollapsingMergeTree:
			assert.Equal(t, 1, signs)
		default:
			assert.Zero(t, signs)
		}
		discardStaged(cat)
	}
}

func TestMatchQueryAliases(t *testing.T) {
	sel := &sqltree.Select{Items: []sqltree.SelectItem{
		{Expr: sqltree.Lit("1")},
		{Expr: sqltree.Lit("2")},
	}}

	plain := matchQueryAliases(&catalog.View{}, sel)
	assert.Equal(t, "SELECT 1 AS c0, 2 AS c1", sqltree.FormatSelect(plain))

	wrapped := matchQueryAliases(&catalog.View{WithCols: true, Cols: []uint32{3, 5}}, sel)
	assert.Equal(t, "SELECT c0 AS c3, c1 AS c5 FROM (SELECT 1 AS c0, 2 AS c1)", sqltree.FormatSelect(wrapped))
}

func TestExplain_OptionsMatchKind(t *testing.T) {
	g := newTestGenerator(4, catalog.New(), fakeEnv{})
	for i := 0; i < 300; i++ {
		st := g.Explain(context.Background())
		valid := explainOptions(st.ExplainKind)
		for _, o := range st.ExplainOpts {
			found := false
			for _, idx := range valid {
				if explainOptionNames[idx] == o.Name {
					found = true
				}
			}
			require.True(t, found, "option %s not valid for %s", o.Name, st.ExplainKind)
			if o.Name != "passes" {
				assert.LessOrEqual(t, o.Value, uint32(1))
			}
		}
		discardStaged(g.Catalog())
	}
}

func TestTablePartition(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New()
	mt := addTable(cat, sqltree.EngineMergeTree, 1)
	mem := addTable(cat, sqltree.EngineMemory, 1)

	g := newTestGenerator(6, cat, fakeEnv{partitions: true})
	kinds := map[sqltree.PartitionKind]bool{}
	for i := 0; i < 300; i++ {
		kinds[g.tablePartition(ctx, mt, true, false).Kind] = true
		assert.Equal(t, sqltree.PartitionTuple, g.tablePartition(ctx, mem, true, false).Kind)
	}
	assert.True(t, kinds[sqltree.PartitionID])
	assert.True(t, kinds[sqltree.PartitionPart])

	none := newTestGenerator(6, cat, fakeEnv{})
	assert.Equal(t, sqltree.PartitionTuple, none.tablePartition(ctx, mt, true, false).Kind)
	assert.Equal(t, sqltree.PartitionAll, none.partitionOrAll(ctx, mt, false).Kind)
}

func TestBackupOrRestore_RestoreMirrorsBackup(t *testing.T) {
	cat := catalog.New()
	b := catalog.NewBackup(cat.NextBackupNumber(), sqltree.TargetFile, []string{"backups/backup0.zip"})
	b.All = true
	cat.Backups[b.Number] = b

	g := newTestGenerator(8, cat, fakeEnv{})
	var restores int
	for i := 0; i < 100; i++ {
		br := g.BackupOrRestore(context.Background())
		if br.Command != sqltree.CommandRestore {
			continue
		}
		restores++
		assert.Equal(t, sqltree.ElementAll, br.Element.Kind)
		assert.Equal(t, b.Number, br.Number)
		assert.Equal(t, b.Params, br.Params)
	}
	assert.Positive(t, restores)
}

func TestSystemCommand_TargetsNeedObjects(t *testing.T) {
	g := newTestGenerator(13, catalog.New(), fakeEnv{})
	for i := 0; i < 500; i++ {
		assert.Nil(t, g.SystemCommand(context.Background()).Target)
	}
}
