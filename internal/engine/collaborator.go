package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// peerTimeout bounds peer calls made without a caller context.
const peerTimeout = 30 * time.Second

// Collaborator executes statements on the server under test through an
// adapter and keeps peer copies of tables on the peer adapters.
type Collaborator struct {
	cat    *catalog.Catalog
	target core.Adapter
	peers  map[sqltree.PeerKind]core.PeerHost
	bucket bool
	rng    *random.Generator
	logger *slog.Logger

	externalRequired  bool
	externalSucceeded bool
}

// NewCollaborator returns a collaborator for the session over cat. seed
// drives the choice among partitions reported by the server.
func NewCollaborator(cat *catalog.Catalog, target core.Adapter, peers map[sqltree.PeerKind]core.PeerHost,
	bucket bool, seed uint64, logger *slog.Logger) *Collaborator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collaborator{
		cat:    cat,
		target: target,
		peers:  peers,
		bucket: bucket,
		rng:    random.New(seed),
		logger: logger,
	}
}

// Execute runs st on the target. A CREATE TABLE of a peered table first
// creates the peer copy; its outcome is reported as the external call.
func (c *Collaborator) Execute(ctx context.Context, st *sqltree.Statement) bool {
	if ct, ok := st.Query.(*sqltree.CreateTable); ok && !st.ExplainOnly() {
		if t, ok := c.cat.Tables.Staged(ct.Table.ID); ok && t.HasPeer() {
			c.externalRequired = true
			c.externalSucceeded = c.createPeerTable(ctx, t)
		}
	}

	sql := sqltree.Format(st)
	if err := c.target.Exec(ctx, sql); err != nil {
		c.logger.Debug("statement failed", slog.String("sql", sql), slog.String("error", err.Error()))
		return false
	}
	c.logger.Debug("statement succeeded", slog.String("sql", sql))
	return true
}

// Query runs st on the target and reads all of its rows.
func (c *Collaborator) Query(ctx context.Context, st *sqltree.Statement) (core.Result, bool) {
	res, err := c.query(ctx, sqltree.Format(st))
	if err != nil {
		c.logger.Debug("query failed", slog.String("sql", sqltree.Format(st)), slog.String("error", err.Error()))
		return core.Result{}, false
	}
	return res, true
}

func (c *Collaborator) query(ctx context.Context, sql string) (core.Result, error) {
	rows, err := c.target.Query(ctx, sql)
	if err != nil {
		return core.Result{}, err
	}
	return core.ReadResult(rows)
}

// partsFilter restricts system.parts or system.detached_parts to t.
func partsFilter(t *catalog.Table) string {
	db := "currentDatabase()"
	if t.DB.Valid {
		db = sqltree.Quote(sqltree.DatabaseName(t.DB.ID))
	}
	return fmt.Sprintf("database = %s AND table = %s", db, sqltree.Quote(t.Ref().Name()))
}

func partsTable(detached bool) string {
	if detached {
		return "system.detached_parts"
	}
	return "system.parts"
}

// TableHasPartitions asks the server whether t has active or detached
// parts.
func (c *Collaborator) TableHasPartitions(ctx context.Context, detached bool, t *catalog.Table) bool {
	sql := fmt.Sprintf("SELECT count() FROM %s WHERE %s", partsTable(detached), partsFilter(t))
	if !detached {
		sql += " AND active"
	}
	res, err := c.query(ctx, sql)
	if err != nil || len(res.Rows) == 0 {
		return false
	}
	return res.Rows[0][0] != "0"
}

// RandomPartitionOrPart picks one partition id or part name of t, or ""
// when the server reports none.
func (c *Collaborator) RandomPartitionOrPart(ctx context.Context, detached, partition bool, t *catalog.Table) string {
	column := "name"
	if partition {
		column = "partition_id"
	}
	sql := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s", column, partsTable(detached), partsFilter(t))
	if !detached {
		sql += " AND active"
	}
	sql += " ORDER BY 1"

	res, err := c.query(ctx, sql)
	if err != nil || len(res.Rows) == 0 {
		return ""
	}
	return random.Pick(c.rng, res.Rows)[0]
}

// HasBackupBucket reports whether the object-store probe succeeded.
func (c *Collaborator) HasBackupBucket() bool {
	return c.bucket
}

// RequiresExternalCallCheck reports whether the last statement created a
// peer table.
func (c *Collaborator) RequiresExternalCallCheck() bool {
	return c.externalRequired
}

// NextExternalCallSucceeded reports whether creating the peer table
// succeeded.
func (c *Collaborator) NextExternalCallSucceeded() bool {
	return c.externalSucceeded
}

// ResetExternalStatus clears the external call flags.
func (c *Collaborator) ResetExternalStatus() {
	c.externalRequired = false
	c.externalSucceeded = false
}

func (c *Collaborator) peer(t *catalog.Table) (core.PeerHost, bool) {
	host, ok := c.peers[t.Peer]
	if !ok {
		c.logger.Debug("no peer configured", slog.String("peer", t.Peer.String()), slog.String("table", t.Ref().Name()))
	}
	return host, ok
}

// peerColumns renders the column definitions of t for host, failing on a
// type the host cannot represent.
func peerColumns(host core.PeerHost, t *catalog.Table) ([]string, error) {
	fields := t.Fields(false)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		typ, ok := host.ColumnType(f.Type.String())
		if !ok {
			return nil, fmt.Errorf("%s cannot hold %s", host.Name(), f.Type)
		}
		cols = append(cols, host.QuoteIdent(f.Path.String())+" "+typ)
	}
	return cols, nil
}

func (c *Collaborator) createPeerTable(ctx context.Context, t *catalog.Table) bool {
	host, ok := c.peer(t)
	if !ok {
		return false
	}
	cols, err := peerColumns(host, t)
	if err != nil {
		c.logger.Debug("peer table not created", slog.String("error", err.Error()))
		return false
	}
	name := t.Ref().Name()
	for _, sql := range []string{
		"DROP TABLE IF EXISTS " + host.QuoteIdent(name),
		host.CreateTableSQL(name, cols),
	} {
		if err := host.Exec(ctx, sql); err != nil {
			c.logger.Debug("peer statement failed", slog.String("sql", sql), slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

// DropPeerTable removes the peer copy of t.
func (c *Collaborator) DropPeerTable(t *catalog.Table) {
	host, ok := c.peer(t)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), peerTimeout)
	defer cancel()
	if err := host.Exec(ctx, "DROP TABLE IF EXISTS "+host.QuoteIdent(t.Ref().Name())); err != nil {
		c.logger.Debug("failed to drop peer table", slog.String("table", t.Ref().Name()), slog.String("error", err.Error()))
	}
}

// PeerReference returns the table function reaching the peer copy of t.
func (c *Collaborator) PeerReference(t *catalog.Table) *sqltree.TableFunction {
	host, ok := c.peers[t.Peer]
	if !ok {
		return offlineReference(t)
	}
	name, args := host.TableFunction(t.Ref().Name())
	fn := &sqltree.TableFunction{Name: name}
	for _, a := range args {
		fn.Args = append(fn.Args, sqltree.Lit(sqltree.Quote(a)))
	}
	return fn
}

func (c *Collaborator) peerExec(ctx context.Context, t *catalog.Table, sql func(core.PeerHost, string) string) bool {
	host, ok := c.peer(t)
	if !ok {
		return false
	}
	stmt := sql(host, t.Ref().Name())
	if stmt == "" {
		return true
	}
	if err := host.Exec(ctx, stmt); err != nil {
		c.logger.Debug("peer statement failed", slog.String("sql", stmt), slog.String("error", err.Error()))
		return false
	}
	return true
}

// TruncatePeerTable empties the peer copy of t.
func (c *Collaborator) TruncatePeerTable(ctx context.Context, t *catalog.Table) bool {
	return c.peerExec(ctx, t, core.PeerHost.TruncateSQL)
}

// OptimizePeerTable merges the peer copy of t where the peer has merges.
func (c *Collaborator) OptimizePeerTable(ctx context.Context, t *catalog.Table) bool {
	return c.peerExec(ctx, t, core.PeerHost.OptimizeSQL)
}

var _ Backend = (*Collaborator)(nil)
