package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/internal/testutil"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/leapstack-labs/leapfuzz/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTarget is a target adapter over go-sqlmock.
type mockTarget struct {
	adapter.BaseSQLAdapter
}

func (*mockTarget) Name() string { return "clickhouse" }

func (*mockTarget) Connect(context.Context, core.AdapterConfig) error { return nil }

func newMockTarget(t *testing.T, opts ...sqlmock.QueryMatcher) (*mockTarget, sqlmock.Sqlmock) {
	t.Helper()
	matcher := sqlmock.QueryMatcher(sqlmock.QueryMatcherRegexp)
	if len(opts) > 0 {
		matcher = opts[0]
	}
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err)
	target := &mockTarget{BaseSQLAdapter: adapter.NewBase(testutil.NewTestLogger(t))}
	target.DB = db
	t.Cleanup(func() { _ = db.Close() })
	return target, mock
}

func newSQLitePeer(t *testing.T) *sqlite.Adapter {
	t.Helper()
	peer := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, peer.Connect(context.Background(), adapter.Config{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "peer.db"),
	}))
	t.Cleanup(func() { _ = peer.Close() })
	return peer
}

func peerTableNames(t *testing.T, peer *sqlite.Adapter) []string {
	t.Helper()
	rows, err := peer.Query(context.Background(), "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	res, err := core.ReadResult(rows)
	require.NoError(t, err)
	var names []string
	for _, r := range res.Rows {
		names = append(names, r[0])
	}
	return names
}

func stagedPeerTable(cat *catalog.Catalog, peer sqltree.PeerKind, typ string) (*catalog.Table, *sqltree.Statement) {
	t := &catalog.Table{ID: cat.NextTableID(), Engine: sqltree.EngineMemory, Peer: peer, Deterministic: true}
	id := t.NextColumnID()
	t.Columns.Put(id, &catalog.Column{ID: id, Type: sqltree.Scalar{Name: typ}})
	cat.Tables.Stage(t.ID, t)

	st := &sqltree.Statement{Query: &sqltree.CreateTable{
		Table:   t.Ref(),
		Columns: []sqltree.ColumnDef{{Path: sqltree.Col(id), Type: sqltree.Scalar{Name: typ}}},
		Engine:  sqltree.EngineDef{Engine: sqltree.EngineMemory},
	}}
	return t, st
}

func TestCollaborator_ExecuteCreatesPeerTable(t *testing.T) {
	tests := []struct {
		name          string
		typ           string
		targetErr     error
		wantSuccess   bool
		wantPeerOK    bool
		wantPeerTable bool
	}{
		{name: "both succeed", typ: "Int64", wantSuccess: true, wantPeerOK: true, wantPeerTable: true},
		{name: "target fails", typ: "Int64", targetErr: errors.New("boom"), wantPeerOK: true, wantPeerTable: true},
		{name: "peer cannot hold type", typ: "UInt64", wantSuccess: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := catalog.New()
			target, mock := newMockTarget(t, sqlmock.QueryMatcherEqual)
			peer := newSQLitePeer(t)
			c := NewCollaborator(cat, target, map[sqltree.PeerKind]core.PeerHost{sqltree.PeerSQLite: peer},
				false, 1, testutil.NewTestLogger(t))

			_, st := stagedPeerTable(cat, sqltree.PeerSQLite, tt.typ)
			exec := mock.ExpectExec(sqltree.Format(st))
			if tt.targetErr != nil {
				exec.WillReturnError(tt.targetErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 0))
			}

			assert.Equal(t, tt.wantSuccess, c.Execute(context.Background(), st))
			assert.True(t, c.RequiresExternalCallCheck())
			assert.Equal(t, tt.wantPeerOK, c.NextExternalCallSucceeded())
			if tt.wantPeerTable {
				assert.Equal(t, []string{"t0"}, peerTableNames(t, peer))
			} else {
				assert.Empty(t, peerTableNames(t, peer))
			}
			require.NoError(t, mock.ExpectationsWereMet())

			c.ResetExternalStatus()
			assert.False(t, c.RequiresExternalCallCheck())
			assert.False(t, c.NextExternalCallSucceeded())
		})
	}
}

func TestCollaborator_ExecuteWithoutPeer(t *testing.T) {
	cat := catalog.New()
	target, mock := newMockTarget(t, sqlmock.QueryMatcherEqual)
	c := NewCollaborator(cat, target, nil, false, 1, nil)

	_, plain := stagedPeerTable(cat, sqltree.PeerNone, "Int64")
	mock.ExpectExec(sqltree.Format(plain)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, c.Execute(context.Background(), plain))
	assert.False(t, c.RequiresExternalCallCheck())

	// the peer kind is not configured
	_, peered := stagedPeerTable(cat, sqltree.PeerMySQL, "Int64")
	mock.ExpectExec(sqltree.Format(peered)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, c.Execute(context.Background(), peered))
	assert.True(t, c.RequiresExternalCallCheck())
	assert.False(t, c.NextExternalCallSucceeded())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollaborator_PeerTableOperations(t *testing.T) {
	ctx := context.Background()
	cat := catalog.New()
	target, mock := newMockTarget(t, sqlmock.QueryMatcherEqual)
	peer := newSQLitePeer(t)
	c := NewCollaborator(cat, target, map[sqltree.PeerKind]core.PeerHost{sqltree.PeerSQLite: peer}, false, 1, nil)

	tbl, st := stagedPeerTable(cat, sqltree.PeerSQLite, "Int64")
	mock.ExpectExec(sqltree.Format(st)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.True(t, c.Execute(ctx, st))
	require.NoError(t, peer.Exec(ctx, `INSERT INTO "t0" VALUES (1), (2), (3)`))

	ref := c.PeerReference(tbl)
	assert.Equal(t, "sqlite", ref.Name)
	require.Len(t, ref.Args, 2)
	assert.Equal(t, "'t0'", ref.Args[1].(*sqltree.Literal).Text)

	assert.True(t, c.OptimizePeerTable(ctx, tbl))
	require.True(t, c.TruncatePeerTable(ctx, tbl))
	rows, err := peer.Query(ctx, `SELECT count(*) FROM "t0"`)
	require.NoError(t, err)
	res, err := core.ReadResult(rows)
	require.NoError(t, err)
	assert.Equal(t, "0", res.Rows[0][0])

	c.DropPeerTable(tbl)
	assert.Empty(t, peerTableNames(t, peer))
	// truncating a dropped table fails on the peer
	assert.False(t, c.TruncatePeerTable(ctx, tbl))
}

func TestCollaborator_Partitions(t *testing.T) {
	tests := []struct {
		name     string
		detached bool
		count    string
		want     bool
	}{
		{name: "active parts", count: "3", want: true},
		{name: "no active parts", count: "0", want: false},
		{name: "detached parts", detached: true, count: "1", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, mock := newMockTarget(t)
			c := NewCollaborator(catalog.New(), target, nil, false, 1, nil)
			tbl := &catalog.Table{ID: 4, DB: sqltree.DatabaseRef{Valid: true, ID: 2}}

			table := `system\.parts`
			if tt.detached {
				table = `system\.detached_parts`
			}
			mock.ExpectQuery(`SELECT count\(\) FROM ` + table + ` WHERE database = 'd2' AND table = 't4'`).
				WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(tt.count))

			assert.Equal(t, tt.want, c.TableHasPartitions(context.Background(), tt.detached, tbl))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCollaborator_RandomPartitionOrPart(t *testing.T) {
	target, mock := newMockTarget(t)
	c := NewCollaborator(catalog.New(), target, nil, false, 1, nil)
	tbl := &catalog.Table{ID: 0}

	mock.ExpectQuery(`SELECT DISTINCT partition_id FROM system\.parts WHERE database = currentDatabase\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"partition_id"}).AddRow("202401").AddRow("202402"))
	got := c.RandomPartitionOrPart(context.Background(), false, true, tbl)
	assert.Contains(t, []string{"202401", "202402"}, got)

	mock.ExpectQuery(`SELECT DISTINCT name FROM system\.detached_parts`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	assert.Empty(t, c.RandomPartitionOrPart(context.Background(), true, false, tbl))

	mock.ExpectQuery(`SELECT DISTINCT name FROM system\.parts`).WillReturnError(errors.New("gone"))
	assert.Empty(t, c.RandomPartitionOrPart(context.Background(), false, false, tbl))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollaborator_Query(t *testing.T) {
	target, mock := newMockTarget(t)
	c := NewCollaborator(catalog.New(), target, nil, true, 1, nil)
	assert.True(t, c.HasBackupBucket())

	st := &sqltree.Statement{Query: &sqltree.SelectStmt{Select: &sqltree.Select{
		Items: []sqltree.SelectItem{{Expr: sqltree.Lit("1")}},
	}}}
	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow("1"))
	res, ok := c.Query(context.Background(), st)
	require.True(t, ok)
	assert.Equal(t, [][]string{{"1"}}, res.Rows)

	mock.ExpectQuery(`SELECT 1`).WillReturnError(errors.New("syntax"))
	_, ok = c.Query(context.Background(), st)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
