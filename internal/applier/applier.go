// Package applier folds the outcome of executed statements back into the
// catalog.
//
// The generator stages every new definition; Apply decides, from the
// statement and whether the server accepted it, which staged entries become
// committed and which live objects change or disappear. Apply never draws
// randomness, so the catalog evolves identically for identical outcomes.
package applier

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Collaborator is the part of the execution layer the applier consults.
type Collaborator interface {
	catalog.PeerDropper
	// RequiresExternalCallCheck reports whether the last statement depended
	// on a call to another engine, such as creating a peer table.
	RequiresExternalCallCheck() bool
	// NextExternalCallSucceeded reports whether that call succeeded.
	NextExternalCallSucceeded() bool
	// ResetExternalStatus clears the flags above.
	ResetExternalStatus()
}

// Applier applies statement outcomes to one catalog.
type Applier struct {
	cat    *catalog.Catalog
	collab Collaborator
}

// New returns an applier over cat.
func New(cat *catalog.Catalog, collab Collaborator) *Applier {
	return &Applier{cat: cat, collab: collab}
}

// Apply records the effect of st. success is whether the server accepted
// the statement; it is further required that any external call the
// statement depended on succeeded.
func (a *Applier) Apply(st *sqltree.Statement, success bool) {
	if a.collab != nil {
		if a.collab.RequiresExternalCallCheck() {
			success = success && a.collab.NextExternalCallSucceeded()
		}
		defer a.collab.ResetExternalStatus()
	}

	switch st.Txn {
	case sqltree.TxnStart:
		a.cat.InTransaction = true
		return
	case sqltree.TxnCommit, sqltree.TxnRollback:
		a.cat.InTransaction = false
		return
	}
	a.apply(st.Query, success && !st.ExplainOnly(), st.ExplainOnly())
}

func (a *Applier) apply(q sqltree.Stmt, live, explainOnly bool) {
	c := a.cat
	switch s := q.(type) {
	case *sqltree.CreateTable:
		a.createTable(s, live, explainOnly)
	case *sqltree.CreateView:
		settle(&c.Views, s.View.ID, live)
	case *sqltree.CreateDictionary:
		settle(&c.Dictionaries, s.Dictionary.ID, live)
	case *sqltree.CreateDatabase:
		settle(&c.Databases, s.Database.ID, live)
	case *sqltree.CreateFunction:
		settle(&c.Functions, s.Function.ID, live)
	case *sqltree.Drop:
		if live {
			a.drop(s.Object)
		}
	case *sqltree.AlterTable:
		a.alter(s, live)
	case *sqltree.Exchange:
		if live {
			c.ExchangeTables(s.First.ID, s.Second.ID)
		}
	case *sqltree.Attach:
		if live {
			a.setStatus(s.Object, sqltree.Attached)
		}
	case *sqltree.Detach:
		if live {
			status := sqltree.Detached
			if s.Permanently {
				status = sqltree.PermDetached
			}
			a.setStatus(s.Object, status)
		}
	case *sqltree.Truncate:
		if live && s.Object.Kind == sqltree.KindDatabase && !s.AllTables {
			c.ClearDatabase(s.Object.ID, a.peers())
		}
	case *sqltree.BackupRestore:
		if !live {
			return
		}
		if s.Command == sqltree.CommandBackup {
			a.backup(s)
		} else {
			a.restore(s)
		}
	}
}

func (a *Applier) peers() catalog.PeerDropper {
	if a.collab == nil {
		return nil
	}
	return a.collab
}

type stagedCollection interface {
	Commit(id uint32)
	Discard(id uint32)
}

// settle commits the staged definition of id on success and discards it
// otherwise.
func settle(o stagedCollection, id uint32, live bool) {
	if live {
		o.Commit(id)
		return
	}
	o.Discard(id)
}

func (a *Applier) createTable(s *sqltree.CreateTable, live, explainOnly bool) {
	tables := &a.cat.Tables
	id := s.Table.ID
	staged, ok := tables.Staged(id)
	if !ok {
		panic(errors.AssertionFailedf("CREATE TABLE of t%d with nothing staged", id))
	}
	if !live {
		if staged.HasPeer() && !explainOnly && a.collab != nil {
			a.collab.DropPeerTable(staged)
		}
		tables.Discard(id)
		return
	}
	if s.Replace {
		if old := tables.MustGet(id); old.HasPeer() && old.Peer != staged.Peer && a.collab != nil {
			a.collab.DropPeerTable(old)
		}
	}
	tables.Commit(id)
}

func (a *Applier) drop(ref sqltree.ObjectRef) {
	c := a.cat
	switch ref.Kind {
	case sqltree.KindTable:
		c.DropTable(ref.ID, a.peers())
	case sqltree.KindView:
		c.Views.Delete(ref.ID)
	case sqltree.KindDictionary:
		c.Dictionaries.Delete(ref.ID)
	case sqltree.KindDatabase:
		c.DropDatabase(ref.ID, a.peers())
	case sqltree.KindFunction:
		c.Functions.Delete(ref.ID)
	default:
		panic(errors.AssertionFailedf("DROP of unexpected kind %s", ref.Kind))
	}
}

func (a *Applier) setStatus(ref sqltree.ObjectRef, status sqltree.AttachStatus) {
	c := a.cat
	switch ref.Kind {
	case sqltree.KindTable:
		c.Tables.MustGet(ref.ID).Status = status
	case sqltree.KindView:
		c.Views.MustGet(ref.ID).Status = status
	case sqltree.KindDictionary:
		c.Dictionaries.MustGet(ref.ID).Status = status
	case sqltree.KindDatabase:
		c.SetDatabaseStatus(ref.ID, status)
	default:
		panic(errors.AssertionFailedf("attach status change of unexpected kind %s", ref.Kind))
	}
}

func (a *Applier) alter(s *sqltree.AlterTable, live bool) {
	switch s.Object.Kind {
	case sqltree.KindView:
		v := a.cat.Views.MustGet(s.Object.ID)
		for _, item := range s.Items {
			if _, ok := item.(*sqltree.ModifyQuery); ok && live && !v.WithCols {
				v.Cols = v.Cols[:0]
				for i := uint32(0); i < v.StagedNCols; i++ {
					v.Cols = append(v.Cols, i)
				}
			}
		}
	case sqltree.KindTable:
		t := a.cat.Tables.MustGet(s.Object.ID)
		for _, item := range s.Items {
			alterItem(t, item, live)
		}
	default:
		panic(errors.AssertionFailedf("ALTER of unexpected kind %s", s.Object.Kind))
	}
}

// alterItem applies one ALTER sub-operation. Staged slots are settled on
// every outcome; removals only happen on success.
func alterItem(t *catalog.Table, item sqltree.AlterItem, live bool) {
	switch it := item.(type) {
	case *sqltree.AddColumn:
		settle(&t.Columns, it.Column.Path.Col, live)
	case *sqltree.ModifyColumn:
		id := it.Column.Path.Col
		if _, ok := t.Columns.Staged(id); ok && live {
			t.Columns.Commit(id)
		} else {
			t.Columns.Discard(id)
		}
	case *sqltree.AddIndex:
		settle(&t.Indexes, it.Index.ID, live)
	case *sqltree.AddProjection:
		settle(&t.Projections, it.Projection.ID, live)
	case *sqltree.AddConstraint:
		settle(&t.Constraints, it.Constraint.ID, live)
	}
	if !live {
		return
	}

	switch it := item.(type) {
	case *sqltree.DropColumn:
		dropColumn(t, it.Column)
	case *sqltree.RenameColumn:
		renameColumn(t, it.Old, it.New)
	case *sqltree.RemoveColumnProperty:
		if col, ok := t.Columns.Get(it.Column.Col); ok && it.Property.IsDefaultModifier() {
			col.Default = sqltree.DefaultNone
		}
	case *sqltree.CommentColumn:
		if col, ok := t.Columns.Get(it.Column.Col); ok {
			col.Comment = it.Comment
		}
	case *sqltree.ModifyColumnSetting:
		if col, ok := t.Columns.Get(it.Column.Col); ok {
			col.Settings = applySettings(col.Settings, it.Settings)
		}
	case *sqltree.RemoveColumnSetting:
		if col, ok := t.Columns.Get(it.Column.Col); ok {
			removeSettings(col.Settings, it.Names)
		}
	case *sqltree.ModifyTableSetting:
		t.Settings = applySettings(t.Settings, it.Settings)
	case *sqltree.RemoveTableSetting:
		removeSettings(t.Settings, it.Names)
	case *sqltree.IndexOp:
		if it.Action == sqltree.IndexDrop {
			t.Indexes.Delete(it.Index)
		}
	case *sqltree.ProjectionOp:
		if it.Action == sqltree.ProjectionRemove {
			t.Projections.Delete(it.Projection)
		}
	case *sqltree.RemoveConstraint:
		t.Constraints.Delete(it.Constraint)
	case *sqltree.FreezePartition:
		if t.Frozen == nil {
			t.Frozen = make(map[uint32]string)
		}
		t.Frozen[it.Tag] = ""
		if it.Partition != nil {
			t.Frozen[it.Tag] = it.Partition.Value
		}
	case *sqltree.UnfreezePartition:
		delete(t.Frozen, it.Tag)
	case *sqltree.CommentTable:
		t.Comment = it.Comment
	}
}

// dropColumn removes a top-level column, or one sub-column of a nested
// column; a nested column left without sub-columns is removed too.
func dropColumn(t *catalog.Table, path sqltree.ColumnPath) {
	if !path.IsNested() {
		t.Columns.Delete(path.Col)
		return
	}
	col, ok := t.Columns.Get(path.Col)
	if !ok {
		return
	}
	if n := col.Nested(); n != nil {
		n.Remove(path.Sub[0])
		if len(n.Fields) == 0 {
			t.Columns.Delete(path.Col)
		}
	}
}

func renameColumn(t *catalog.Table, from, to sqltree.ColumnPath) {
	col, ok := t.Columns.Get(from.Col)
	if !ok {
		return
	}
	if from.IsNested() {
		if n := col.Nested(); n != nil {
			n.Rename(from.Sub[0], to.Sub[0])
		}
		return
	}
	t.Columns.Delete(from.Col)
	col.ID = to.Col
	t.Columns.Put(to.Col, col)
}

func applySettings(current map[string]string, values []sqltree.SettingValue) map[string]string {
	if current == nil {
		current = make(map[string]string, len(values))
	}
	for _, v := range values {
		current[v.Name] = v.Value
	}
	return current
}

func removeSettings(current map[string]string, names []string) {
	for _, n := range names {
		delete(current, n)
	}
}

// backup snapshots the objects covered by s by value.
func (a *Applier) backup(s *sqltree.BackupRestore) {
	c := a.cat
	b := catalog.NewBackup(s.Number, s.Target, s.Params)
	b.Format = s.Format
	el := s.Element
	switch el.Kind {
	case sqltree.ElementAll:
		b.All = true
		for _, d := range c.Databases.Values() {
			b.Databases[d.ID] = d.Clone()
		}
		for _, t := range c.Tables.Values() {
			b.Tables[t.ID] = t.Clone()
		}
		for _, v := range c.Views.Values() {
			b.Views[v.ID] = v.Clone()
		}
		for _, d := range c.Dictionaries.Values() {
			b.Dictionaries[d.ID] = d.Clone()
		}
	case sqltree.ElementAllTemporary:
		b.AllTemporary = true
		for _, t := range c.Tables.Filter(func(t *catalog.Table) bool { return t.Temporary }) {
			b.Tables[t.ID] = t.Clone()
		}
	default:
		switch ref := el.Object; ref.Kind {
		case sqltree.KindSystemTable:
			b.SystemTable = ref.System
		case sqltree.KindTable:
			b.Tables[ref.ID] = c.Tables.MustGet(ref.ID).Clone()
			if len(el.Partitions) > 0 {
				b.Partition = el.Partitions[0].Value
			}
		case sqltree.KindView:
			b.Views[ref.ID] = c.Views.MustGet(ref.ID).Clone()
		case sqltree.KindDictionary:
			b.Dictionaries[ref.ID] = c.Dictionaries.MustGet(ref.ID).Clone()
		case sqltree.KindDatabase:
			b.Databases[ref.ID] = c.Databases.MustGet(ref.ID).Clone()
			for _, t := range c.Tables.Filter(func(t *catalog.Table) bool { return t.DB.Is(ref.ID) }) {
				b.Tables[t.ID] = t.Clone()
			}
			for _, v := range c.Views.Filter(func(v *catalog.View) bool { return v.DB.Is(ref.ID) }) {
				b.Views[v.ID] = v.Clone()
			}
			for _, d := range c.Dictionaries.Filter(func(d *catalog.Dictionary) bool { return d.DB.Is(ref.ID) }) {
				b.Dictionaries[d.ID] = d.Clone()
			}
		default:
			panic(errors.AssertionFailedf("BACKUP of unexpected kind %s", ref.Kind))
		}
	}
	c.Backups[b.Number] = b
}

// restore copies the restored subset of a recorded backup back into the
// catalog. Databases go first so that contained objects find their owner;
// a partition-restricted restore brings back no catalog objects.
func (a *Applier) restore(s *sqltree.BackupRestore) {
	c := a.cat
	b, ok := c.Backups[s.Number]
	if !ok || len(s.Element.Partitions) > 0 {
		return
	}

	wantTable := func(*catalog.Table) bool { return true }
	wantView := func(*catalog.View) bool { return true }
	wantDict := func(*catalog.Dictionary) bool { return true }
	wantDB := func(*catalog.Database) bool { return true }
	if el := s.Element; el.Kind == sqltree.ElementObject {
		ref := el.Object
		wantTable = func(t *catalog.Table) bool {
			return (ref.Kind == sqltree.KindTable && t.ID == ref.ID) || (ref.Kind == sqltree.KindDatabase && t.DB.Is(ref.ID))
		}
		wantView = func(v *catalog.View) bool {
			return (ref.Kind == sqltree.KindView && v.ID == ref.ID) || (ref.Kind == sqltree.KindDatabase && v.DB.Is(ref.ID))
		}
		wantDict = func(d *catalog.Dictionary) bool {
			return (ref.Kind == sqltree.KindDictionary && d.ID == ref.ID) || (ref.Kind == sqltree.KindDatabase && d.DB.Is(ref.ID))
		}
		wantDB = func(d *catalog.Database) bool { return ref.Kind == sqltree.KindDatabase && d.ID == ref.ID }
	}

	for _, id := range sortedKeys(b.Databases) {
		if d := b.Databases[id]; wantDB(d) {
			restored := d.Clone()
			restored.Status = sqltree.Attached
			c.Databases.Put(id, restored)
		}
	}
	present := func(db sqltree.DatabaseRef) bool { return !db.Valid || c.Databases.Has(db.ID) }
	for _, id := range sortedKeys(b.Tables) {
		if t := b.Tables[id]; wantTable(t) && present(t.DB) {
			restored := t.Clone()
			restored.Status = sqltree.Attached
			c.Tables.Put(id, restored)
		}
	}
	for _, id := range sortedKeys(b.Views) {
		if v := b.Views[id]; wantView(v) && present(v.DB) {
			restored := v.Clone()
			restored.Status = sqltree.Attached
			c.Views.Put(id, restored)
		}
	}
	for _, id := range sortedKeys(b.Dictionaries) {
		if d := b.Dictionaries[id]; wantDict(d) && present(d.DB) {
			restored := d.Clone()
			restored.Status = sqltree.Attached
			c.Dictionaries.Put(id, restored)
		}
	}
}

func sortedKeys[V any](m map[uint32]V) []uint32 {
	return slices.Sorted(maps.Keys(m))
}
