package oracle

import (
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/generator"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noPartitions struct{}

func (noPartitions) TableHasPartitions(context.Context, bool, *catalog.Table) bool { return false }
func (noPartitions) RandomPartitionOrPart(context.Context, bool, bool, *catalog.Table) string {
	return ""
}
func (noPartitions) HasBackupBucket() bool { return false }

type fakeExec struct {
	// query answers SELECTs by their rendered text
	query     func(sql string) core.Result
	failQuery func(sql string) bool
	failExec  func(sql string) bool
	executed  []string
	queried   []string
	truncated []uint32
	optimized []uint32
}

func (f *fakeExec) Execute(_ context.Context, st *sqltree.Statement) bool {
	sql := sqltree.Format(st)
	f.executed = append(f.executed, sql)
	return f.failExec == nil || !f.failExec(sql)
}

func (f *fakeExec) Query(_ context.Context, st *sqltree.Statement) (core.Result, bool) {
	sql := sqltree.Format(st)
	f.queried = append(f.queried, sql)
	if f.failQuery != nil && f.failQuery(sql) {
		return core.Result{}, false
	}
	if f.query == nil {
		return core.Result{Rows: [][]string{{"1"}}}, true
	}
	return f.query(sql), true
}

func (f *fakeExec) PeerReference(t *catalog.Table) *sqltree.TableFunction {
	return &sqltree.TableFunction{Name: "mysql", Args: []sqltree.Expr{
		sqltree.Lit("'peer:3306'"), sqltree.Lit("'fuzz'"), sqltree.Lit(sqltree.Quote(t.Ref().Name())),
	}}
}

func (f *fakeExec) TruncatePeerTable(_ context.Context, t *catalog.Table) bool {
	f.truncated = append(f.truncated, t.ID)
	return true
}

func (f *fakeExec) OptimizePeerTable(_ context.Context, t *catalog.Table) bool {
	f.optimized = append(f.optimized, t.ID)
	return true
}

func addTable(c *catalog.Catalog, engine sqltree.TableEngine, peer sqltree.PeerKind) *catalog.Table {
	t := &catalog.Table{ID: c.NextTableID(), Engine: engine, Peer: peer, Deterministic: true}
	for i := 0; i < 3; i++ {
		id := t.NextColumnID()
		t.Columns.Put(id, &catalog.Column{ID: id, Type: sqltree.Scalar{Name: "Int64", Family: sqltree.FamilyInt}})
	}
	c.Tables.Put(t.ID, t)
	return t
}

func newOracle(seed uint64, c *catalog.Catalog, ex Executor) *Oracle {
	g := generator.New(generator.DefaultConfig(), c, noPartitions{}, nil, random.New(seed))
	return New(DefaultConfig(), g, ex)
}

func rows(values ...string) core.Result {
	res := core.Result{Columns: []string{"v"}}
	for _, v := range values {
		res.Rows = append(res.Rows, []string{v})
	}
	return res
}

func TestDigest_OrderInsensitive(t *testing.T) {
	assert.Equal(t, digest(rows("a", "b", "c")), digest(rows("c", "a", "b")))
	assert.NotEqual(t, digest(rows("a", "b")), digest(rows("a", "b", "b")))
	assert.NotEqual(t, digest(rows("a\tb")), digest(core.Result{Rows: [][]string{{"a", "b"}, {}}}))
	assert.Len(t, digest(rows("x")).String(), 32)
}

func TestDigest_SeparatorsInsideValues(t *testing.T) {
	tests := []struct {
		name      string
		first     core.Result
		second    core.Result
		wantEqual bool
	}{
		{
			name:   "tab inside a cell",
			first:  rows("a\tb"),
			second: core.Result{Rows: [][]string{{"a", "b"}}},
		},
		{
			name:   "newline inside a cell",
			first:  rows("x\ny"),
			second: rows("x", "y"),
		},
		{
			name:   "escaped tab text",
			first:  rows(`a\tb`),
			second: rows("a\tb"),
		},
		{
			name:   "null and backslash text",
			first:  rows(core.NullText),
			second: rows(`\\N`),
		},
		{
			name:      "same cells",
			first:     core.Result{Rows: [][]string{{"a\tb", core.NullText}}},
			second:    core.Result{Rows: [][]string{{"a\tb", core.NullText}}},
			wantEqual: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantEqual {
				assert.Equal(t, digest(tt.first), digest(tt.second))
				return
			}
			assert.NotEqual(t, digest(tt.first), digest(tt.second))
		})
	}
}

func TestDigest_NullableArrays(t *testing.T) {
	a, b := int64(1), int64(1)
	first := core.Result{Rows: [][]string{{core.ValueText([]*int64{&a, nil})}}}
	second := core.Result{Rows: [][]string{{core.ValueText([]*int64{&b, nil})}}}
	assert.Equal(t, digest(first), digest(second))

	o := newOracle(1, catalog.New(), &fakeExec{})
	o.SetIntermediateStepSuccess(true)
	o.ProcessFirstResult(true, first)
	assert.Nil(t, o.ProcessSecondResult(true, "dump", second))
}

func TestProcessSecondResult(t *testing.T) {
	tests := []struct {
		name          string
		firstOK       bool
		secondOK      bool
		stepOK        bool
		second        core.Result
		wantDivergent bool
	}{
		{name: "equal results", firstOK: true, secondOK: true, stepOK: true, second: rows("1", "2")},
		{name: "different results", firstOK: true, secondOK: true, stepOK: true, second: rows("1", "3"), wantDivergent: true},
		{name: "first failed", firstOK: false, secondOK: true, stepOK: true, second: rows("9")},
		{name: "second failed", firstOK: true, secondOK: false, stepOK: true, second: rows("9")},
		{name: "intermediate step failed", firstOK: true, secondOK: true, stepOK: false, second: rows("9")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOracle(1, catalog.New(), &fakeExec{})
			o.SetIntermediateStepSuccess(tt.stepOK)
			o.ProcessFirstResult(tt.firstOK, rows("2", "1"))
			d := o.ProcessSecondResult(tt.secondOK, "test", tt.second)
			if !tt.wantDivergent {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, "test", d.Oracle)
			assert.NotEqual(t, d.FirstDigest, d.SecondDigest)
			assert.Contains(t, d.Detail, "3")
		})
	}
}

func TestRunCorrectness(t *testing.T) {
	c := catalog.New()
	addTable(c, sqltree.EngineMergeTree, sqltree.PeerNone)

	t.Run("matching counts", func(t *testing.T) {
		ex := &fakeExec{query: func(string) core.Result { return rows("4") }}
		assert.Nil(t, newOracle(2, c, ex).RunCorrectness(context.Background()))
		require.Len(t, ex.queried, 2)
		assert.True(t, strings.HasPrefix(ex.queried[0], "SELECT count() FROM "))
		assert.Contains(t, ex.queried[0], " WHERE ")
		assert.True(t, strings.HasPrefix(ex.queried[1], "SELECT ifNull(sum("))
		assert.NotContains(t, ex.queried[1], " WHERE ")
	})

	t.Run("mismatch is reported", func(t *testing.T) {
		ex := &fakeExec{query: func(sql string) core.Result {
			if strings.Contains(sql, "count()") {
				return rows("4")
			}
			return rows("5")
		}}
		d := newOracle(2, c, ex).RunCorrectness(context.Background())
		require.NotNil(t, d)
		assert.Equal(t, NameCorrectness, d.Oracle)
		assert.Equal(t, ex.queried[0], d.FirstSQL)
		assert.Equal(t, ex.queried[1], d.SecondSQL)
	})

	t.Run("failed first query stops the run", func(t *testing.T) {
		ex := &fakeExec{failQuery: func(string) bool { return true }}
		assert.Nil(t, newOracle(2, c, ex).RunCorrectness(context.Background()))
		assert.Len(t, ex.queried, 1)
	})

	t.Run("nothing comparable", func(t *testing.T) {
		ex := &fakeExec{}
		assert.Nil(t, newOracle(2, catalog.New(), ex).RunCorrectness(context.Background()))
		assert.Empty(t, ex.queried)
	})
}

func TestRunDumpReload(t *testing.T) {
	c := catalog.New()
	tbl := addTable(c, sqltree.EngineMergeTree, sqltree.PeerNone)
	addTable(c, sqltree.EngineReplacingMergeTree, sqltree.PeerNone)

	t.Run("reload matches", func(t *testing.T) {
		ex := &fakeExec{}
		assert.Nil(t, newOracle(3, c, ex).RunDumpReload(context.Background()))
		require.Len(t, ex.executed, 3)
		assert.True(t, strings.HasPrefix(ex.executed[0], "INSERT INTO FUNCTION file('leapfuzz/t0.data'"))
		assert.Equal(t, "TRUNCATE TABLE t0", ex.executed[1])
		assert.True(t, strings.HasPrefix(ex.executed[2], "INSERT INTO t0 (c0, c1, c2) SELECT * FROM file("))
		require.Len(t, ex.queried, 2)
		assert.Equal(t, ex.queried[0], ex.queried[1])
	})

	t.Run("failed export is a step failure", func(t *testing.T) {
		ex := &fakeExec{failExec: func(sql string) bool { return strings.Contains(sql, "FUNCTION file") }}
		o := newOracle(3, c, ex)
		assert.Nil(t, o.RunDumpReload(context.Background()))
		assert.True(t, o.StepFailed())
		assert.Len(t, ex.executed, 1)
		assert.Len(t, ex.queried, 1)
	})

	assert.True(t, Dumpable(tbl))
	assert.False(t, Dumpable(c.Tables.MustGet(1)))
}

func TestRunSettings(t *testing.T) {
	c := catalog.New()
	addTable(c, sqltree.EngineMergeTree, sqltree.PeerNone)
	ex := &fakeExec{}

	assert.Nil(t, newOracle(4, c, ex).RunSettings(context.Background()))
	require.Len(t, ex.executed, 2)
	require.Len(t, ex.queried, 2)
	assert.Equal(t, ex.queried[0], ex.queried[1])
	assert.NotContains(t, ex.queried[0], " LIMIT ")

	names := func(set string) []string {
		var out []string
		for _, kv := range strings.Split(strings.TrimPrefix(set, "SET "), ", ") {
			name, _, _ := strings.Cut(kv, " = ")
			out = append(out, name)
		}
		return out
	}
	assert.Equal(t, names(ex.executed[0]), names(ex.executed[1]))
}

func TestRunPeer(t *testing.T) {
	c := catalog.New()
	peered := addTable(c, sqltree.EngineMergeTree, sqltree.PeerMySQL)
	addTable(c, sqltree.EngineMergeTree, sqltree.PeerNone)
	require.True(t, HasPeerTable(c))

	ex := &fakeExec{}
	assert.Nil(t, newOracle(5, c, ex).RunPeer(context.Background()))

	assert.Equal(t, []uint32{peered.ID}, ex.truncated)
	assert.Equal(t, []uint32{peered.ID}, ex.optimized)
	require.Len(t, ex.executed, 1)
	assert.True(t, strings.HasPrefix(ex.executed[0], "INSERT INTO FUNCTION mysql("))
	require.Len(t, ex.queried, 2)
	assert.Contains(t, ex.queried[0], "FROM t0")
	assert.NotContains(t, ex.queried[1], "FROM t0")
	assert.Contains(t, ex.queried[1], "mysql('peer:3306', 'fuzz', 't0')")
}
