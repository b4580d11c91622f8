package engine

import (
	"context"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// Offline is a backend without a server: every statement succeeds, queries
// return no rows and no table has partitions. It drives statement
// generation for printing and interactive exploration.
type Offline struct{}

// Execute reports success.
func (Offline) Execute(context.Context, *sqltree.Statement) bool { return true }

// Query returns an empty result.
func (Offline) Query(context.Context, *sqltree.Statement) (core.Result, bool) {
	return core.Result{}, true
}

// TableHasPartitions reports false.
func (Offline) TableHasPartitions(context.Context, bool, *catalog.Table) bool { return false }

// RandomPartitionOrPart returns "".
func (Offline) RandomPartitionOrPart(context.Context, bool, bool, *catalog.Table) string { return "" }

// HasBackupBucket reports false.
func (Offline) HasBackupBucket() bool { return false }

// DropPeerTable does nothing.
func (Offline) DropPeerTable(*catalog.Table) {}

// RequiresExternalCallCheck reports false.
func (Offline) RequiresExternalCallCheck() bool { return false }

// NextExternalCallSucceeded reports true.
func (Offline) NextExternalCallSucceeded() bool { return true }

// ResetExternalStatus does nothing.
func (Offline) ResetExternalStatus() {}

// PeerReference names the peer copy by its table function alone.
func (Offline) PeerReference(t *catalog.Table) *sqltree.TableFunction {
	return offlineReference(t)
}

// TruncatePeerTable reports success.
func (Offline) TruncatePeerTable(context.Context, *catalog.Table) bool { return true }

// OptimizePeerTable reports success.
func (Offline) OptimizePeerTable(context.Context, *catalog.Table) bool { return true }

var peerFunctions = map[sqltree.PeerKind]string{
	sqltree.PeerClickHouse: "remote",
	sqltree.PeerMySQL:      "mysql",
	sqltree.PeerPostgreSQL: "postgresql",
	sqltree.PeerSQLite:     "sqlite",
}

func offlineReference(t *catalog.Table) *sqltree.TableFunction {
	name, ok := peerFunctions[t.Peer]
	if !ok {
		name = "remote"
	}
	return &sqltree.TableFunction{Name: name, Args: []sqltree.Expr{sqltree.Lit(sqltree.Quote(t.Ref().Name()))}}
}

var _ Backend = Offline{}
