// Package catalog models the objects a fuzzing session believes exist on
// the server under test.
//
// Every creatable kind lives in an Objects collection keyed by id. The
// generator stages new definitions; the applier commits or discards them
// once the outcome of the statement is known. All iteration is in ascending
// id order so that a seeded session is reproducible.
package catalog

import (
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// PeerDropper removes the peer copy of a table from its remote engine.
type PeerDropper interface {
	DropPeerTable(t *Table)
}

// Catalog is the in-memory model of one session.
type Catalog struct {
	Databases    Objects[*Database]
	Tables       Objects[*Table]
	Views        Objects[*View]
	Dictionaries Objects[*Dictionary]
	Functions    Objects[*Function]
	Backups      map[uint32]*Backup

	InTransaction bool

	databaseCounter   uint32
	tableCounter      uint32
	viewCounter       uint32
	dictionaryCounter uint32
	functionCounter   uint32
	backupCounter     uint32
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Backups: make(map[uint32]*Backup)}
}

// NextDatabaseID returns a fresh database id.
func (c *Catalog) NextDatabaseID() uint32 { return next(&c.databaseCounter) }

// NextTableID returns a fresh table id.
func (c *Catalog) NextTableID() uint32 { return next(&c.tableCounter) }

// NextViewID returns a fresh view id.
func (c *Catalog) NextViewID() uint32 { return next(&c.viewCounter) }

// NextDictionaryID returns a fresh dictionary id.
func (c *Catalog) NextDictionaryID() uint32 { return next(&c.dictionaryCounter) }

// NextFunctionID returns a fresh function id.
func (c *Catalog) NextFunctionID() uint32 { return next(&c.functionCounter) }

// NextBackupNumber returns a fresh backup number.
func (c *Catalog) NextBackupNumber() uint32 { return next(&c.backupCounter) }

func next(counter *uint32) uint32 {
	id := *counter
	*counter++
	return id
}

// databaseAttached reports whether db is the default database or an attached
// one.
func (c *Catalog) databaseAttached(db sqltree.DatabaseRef) bool {
	if !db.Valid {
		return true
	}
	d, ok := c.Databases.Get(db.ID)
	return ok && d.Status == sqltree.Attached
}

func (c *Catalog) tableAttached(t *Table) bool {
	return t.Status == sqltree.Attached && c.databaseAttached(t.DB)
}

func (c *Catalog) tableAttachable(t *Table) bool {
	return t.Status == sqltree.Detached && c.databaseAttached(t.DB)
}

func and[T any](base func(T) bool, pred func(T) bool) func(T) bool {
	if pred == nil {
		return base
	}
	return func(v T) bool { return base(v) && pred(v) }
}

// AttachedTables returns the attached tables satisfying pred.
func (c *Catalog) AttachedTables(pred func(*Table) bool) []*Table {
	return c.Tables.Filter(and(c.tableAttached, pred))
}

// DetachedTables returns the tables that can be attached again.
func (c *Catalog) DetachedTables() []*Table {
	return c.Tables.Filter(c.tableAttachable)
}

// AttachedViews returns the attached views satisfying pred.
func (c *Catalog) AttachedViews(pred func(*View) bool) []*View {
	return c.Views.Filter(and(func(v *View) bool {
		return v.Status == sqltree.Attached && c.databaseAttached(v.DB)
	}, pred))
}

// DetachedViews returns the views that can be attached again.
func (c *Catalog) DetachedViews() []*View {
	return c.Views.Filter(func(v *View) bool {
		return v.Status == sqltree.Detached && c.databaseAttached(v.DB)
	})
}

// AttachedDictionaries returns the attached dictionaries satisfying pred.
func (c *Catalog) AttachedDictionaries(pred func(*Dictionary) bool) []*Dictionary {
	return c.Dictionaries.Filter(and(func(d *Dictionary) bool {
		return d.Status == sqltree.Attached && c.databaseAttached(d.DB)
	}, pred))
}

// DetachedDictionaries returns the dictionaries that can be attached again.
func (c *Catalog) DetachedDictionaries() []*Dictionary {
	return c.Dictionaries.Filter(func(d *Dictionary) bool {
		return d.Status == sqltree.Detached && c.databaseAttached(d.DB)
	})
}

// AttachedDatabases returns the attached databases satisfying pred.
func (c *Catalog) AttachedDatabases(pred func(*Database) bool) []*Database {
	return c.Databases.Filter(and(func(d *Database) bool {
		return d.Status == sqltree.Attached
	}, pred))
}

// DetachedDatabases returns the databases that can be attached again.
func (c *Catalog) DetachedDatabases() []*Database {
	return c.Databases.Filter(func(d *Database) bool {
		return d.Status == sqltree.Detached
	})
}

// CountAttachedTables counts attached tables.
func (c *Catalog) CountAttachedTables() int { return len(c.AttachedTables(nil)) }

// CountAttachedViews counts attached views.
func (c *Catalog) CountAttachedViews() int { return len(c.AttachedViews(nil)) }

// CountAttachedDictionaries counts attached dictionaries.
func (c *Catalog) CountAttachedDictionaries() int { return len(c.AttachedDictionaries(nil)) }

// CountAttachedDatabases counts attached databases.
func (c *Catalog) CountAttachedDatabases() int { return len(c.AttachedDatabases(nil)) }

// HasAttachedTable reports whether an attached table satisfies pred.
func (c *Catalog) HasAttachedTable(pred func(*Table) bool) bool {
	return c.Tables.Any(and(c.tableAttached, pred))
}

// HasAttachedView reports whether an attached view satisfies pred.
func (c *Catalog) HasAttachedView(pred func(*View) bool) bool {
	return len(c.AttachedViews(pred)) > 0
}

// HasAttachedDictionary reports whether an attached dictionary satisfies
// pred.
func (c *Catalog) HasAttachedDictionary(pred func(*Dictionary) bool) bool {
	return len(c.AttachedDictionaries(pred)) > 0
}

// HasAttachedDatabase reports whether an attached database satisfies pred.
func (c *Catalog) HasAttachedDatabase(pred func(*Database) bool) bool {
	return len(c.AttachedDatabases(pred)) > 0
}

// HasDetached reports whether any table, view, dictionary or database can
// be attached again.
func (c *Catalog) HasDetached() bool {
	return len(c.DetachedTables()) > 0 || len(c.DetachedViews()) > 0 ||
		len(c.DetachedDictionaries()) > 0 || len(c.DetachedDatabases()) > 0
}

// PickAttachedTable picks uniformly among the attached tables satisfying
// pred. It panics when none does.
func (c *Catalog) PickAttachedTable(rng *random.Generator, pred func(*Table) bool) *Table {
	return random.Pick(rng, c.AttachedTables(pred))
}

// PickAttachedView picks uniformly among the attached views satisfying pred.
func (c *Catalog) PickAttachedView(rng *random.Generator, pred func(*View) bool) *View {
	return random.Pick(rng, c.AttachedViews(pred))
}

// PickAttachedDictionary picks uniformly among the attached dictionaries
// satisfying pred.
func (c *Catalog) PickAttachedDictionary(rng *random.Generator, pred func(*Dictionary) bool) *Dictionary {
	return random.Pick(rng, c.AttachedDictionaries(pred))
}

// PickAttachedDatabase picks uniformly among the attached databases
// satisfying pred.
func (c *Catalog) PickAttachedDatabase(rng *random.Generator, pred func(*Database) bool) *Database {
	return random.Pick(rng, c.AttachedDatabases(pred))
}

// PickFunction picks uniformly among the committed functions.
func (c *Catalog) PickFunction(rng *random.Generator) *Function {
	return random.Pick(rng, c.Functions.Values())
}

// DropTable removes table id, dropping its peer copy first.
func (c *Catalog) DropTable(id uint32, peers PeerDropper) {
	t := c.Tables.MustGet(id)
	if t.HasPeer() && peers != nil {
		peers.DropPeerTable(t)
	}
	c.Tables.Delete(id)
}

// ClearDatabase removes every table, view and dictionary owned by database
// id and keeps the database itself.
func (c *Catalog) ClearDatabase(id uint32, peers PeerDropper) {
	for _, t := range c.Tables.Filter(func(t *Table) bool { return t.DB.Is(id) }) {
		c.DropTable(t.ID, peers)
	}
	for _, v := range c.Views.Filter(func(v *View) bool { return v.DB.Is(id) }) {
		c.Views.Delete(v.ID)
	}
	for _, d := range c.Dictionaries.Filter(func(d *Dictionary) bool { return d.DB.Is(id) }) {
		c.Dictionaries.Delete(d.ID)
	}
}

// DropDatabase removes database id together with everything it owns.
func (c *Catalog) DropDatabase(id uint32, peers PeerDropper) {
	c.Databases.MustGet(id)
	c.ClearDatabase(id, peers)
	c.Databases.Delete(id)
}

// SetDatabaseStatus updates database id and raises every object it owns to
// at least status.
func (c *Catalog) SetDatabaseStatus(id uint32, status sqltree.AttachStatus) {
	d := c.Databases.MustGet(id)
	d.Status = status
	cascade := status
	if cascade == sqltree.Attached {
		cascade = sqltree.Detached
	}
	for _, t := range c.Tables.Filter(func(t *Table) bool { return t.DB.Is(id) }) {
		t.Status = max(t.Status, cascade)
	}
	for _, v := range c.Views.Filter(func(v *View) bool { return v.DB.Is(id) }) {
		v.Status = max(v.Status, cascade)
	}
	for _, dict := range c.Dictionaries.Filter(func(d *Dictionary) bool { return d.DB.Is(id) }) {
		dict.Status = max(dict.Status, cascade)
	}
}

// ExchangeTables swaps the ids and owning databases of tables a and b.
func (c *Catalog) ExchangeTables(a, b uint32) {
	ta := c.Tables.MustGet(a)
	tb := c.Tables.MustGet(b)
	ta.ID, tb.ID = tb.ID, ta.ID
	ta.DB, tb.DB = tb.DB, ta.DB
	c.Tables.Put(ta.ID, ta)
	c.Tables.Put(tb.ID, tb)
}

// Stats summarises the committed contents of the catalog.
type Stats struct {
	Databases    int
	Tables       int
	Views        int
	Dictionaries int
	Functions    int
	Backups      int
}

// Stats returns the committed object counts.
func (c *Catalog) Stats() Stats {
	return Stats{
		Databases:    c.Databases.Len(),
		Tables:       c.Tables.Len(),
		Views:        c.Views.Len(),
		Dictionaries: c.Dictionaries.Len(),
		Functions:    c.Functions.Len(),
		Backups:      len(c.Backups),
	}
}

// StagedCount returns how many staged definitions remain across all kinds.
func (c *Catalog) StagedCount() int {
	return len(c.Databases.StagedIDs()) + len(c.Tables.StagedIDs()) +
		len(c.Views.StagedIDs()) + len(c.Dictionaries.StagedIDs()) +
		len(c.Functions.StagedIDs())
}
