package catalog

import (
	"maps"
	"slices"

	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// SpecialRole marks engine-owned columns that must keep their type.
type SpecialRole uint8

// SpecialRole values.
const (
	RoleNone SpecialRole = iota
	RoleSign
	RoleVersion
	RoleIsDeleted
)

// Column is a table column.
type Column struct {
	ID       uint32
	Type     sqltree.Type
	Null     sqltree.Nullability
	Default  sqltree.DefaultKind
	Codecs   []string
	Comment  string
	Settings map[string]string
	Special  SpecialRole
}

// Clone deep-copies the column.
func (c *Column) Clone() *Column {
	out := *c
	out.Type = c.Type.Clone()
	out.Codecs = slices.Clone(c.Codecs)
	out.Settings = maps.Clone(c.Settings)
	return &out
}

// Nested returns the column type as Nested, or nil.
func (c *Column) Nested() *sqltree.Nested {
	n, _ := c.Type.(*sqltree.Nested)
	return n
}

// EffectiveType returns the type values of the column carry.
func (c *Column) EffectiveType() sqltree.Type {
	if c.Null == sqltree.NullYes {
		return sqltree.Nullable{Elem: c.Type}
	}
	return c.Type
}

// Index is a data-skipping index.
type Index struct {
	ID   uint32
	Type string
}

// Clone copies the index.
func (i *Index) Clone() *Index {
	out := *i
	return &out
}

// Projection is a table projection.
type Projection struct {
	ID uint32
}

// Clone copies the projection.
func (p *Projection) Clone() *Projection {
	out := *p
	return &out
}

// Constraint is a CHECK or ASSUME constraint.
type Constraint struct {
	ID     uint32
	Assume bool
}

// Clone copies the constraint.
func (c *Constraint) Clone() *Constraint {
	out := *c
	return &out
}

// Field is one value-carrying column path with its effective type. Nested
// columns contribute one Array field per sub-column.
type Field struct {
	Path    sqltree.ColumnPath
	Type    sqltree.Type
	Special SpecialRole
}

// Table is a table definition.
type Table struct {
	ID            uint32
	DB            sqltree.DatabaseRef
	Engine        sqltree.TableEngine
	Columns       Objects[*Column]
	Indexes       Objects[*Index]
	Projections   Objects[*Projection]
	Constraints   Objects[*Constraint]
	Frozen        map[uint32]string
	Settings      map[string]string
	Temporary     bool
	Peer          sqltree.PeerKind
	Status        sqltree.AttachStatus
	Deterministic bool
	Cluster       string
	Comment       string

	columnCounter     uint32
	indexCounter      uint32
	projectionCounter uint32
	constraintCounter uint32
	freezeCounter     uint32
}

// Ref returns a reference to the table.
func (t *Table) Ref() sqltree.ObjectRef {
	return sqltree.Table(t.ID, t.DB)
}

// IsMergeTree reports whether the table engine is in the MergeTree family.
func (t *Table) IsMergeTree() bool {
	return t.Engine.IsMergeTree()
}

// HasPeer reports whether a peer copy of the table exists on another engine.
func (t *Table) HasPeer() bool {
	return t.Peer != sqltree.PeerNone
}

// NextColumnID returns a fresh column id.
func (t *Table) NextColumnID() uint32 {
	id := t.columnCounter
	t.columnCounter++
	return id
}

// NextIndexID returns a fresh index id.
func (t *Table) NextIndexID() uint32 {
	id := t.indexCounter
	t.indexCounter++
	return id
}

// NextProjectionID returns a fresh projection id.
func (t *Table) NextProjectionID() uint32 {
	id := t.projectionCounter
	t.projectionCounter++
	return id
}

// NextConstraintID returns a fresh constraint id.
func (t *Table) NextConstraintID() uint32 {
	id := t.constraintCounter
	t.constraintCounter++
	return id
}

// NextFreezeTag returns a fresh freeze tag.
func (t *Table) NextFreezeTag() uint32 {
	id := t.freezeCounter
	t.freezeCounter++
	return id
}

// ReserveColumnIDs advances the column counter past every id below n.
func (t *Table) ReserveColumnIDs(n uint32) {
	t.columnCounter = max(t.columnCounter, n)
}

// Fields returns the value-carrying paths of the committed columns in
// ascending id order. With insertable set, MATERIALIZED and ALIAS columns
// are skipped.
func (t *Table) Fields(insertable bool) []Field {
	var out []Field
	for _, c := range t.Columns.Values() {
		if insertable && !c.Default.Insertable() {
			continue
		}
		if n := c.Nested(); n != nil {
			for _, f := range n.Fields {
				out = append(out, Field{
					Path: sqltree.SubCol(c.ID, f.ID),
					Type: sqltree.Array{Elem: f.Type},
				})
			}
			continue
		}
		out = append(out, Field{Path: sqltree.Col(c.ID), Type: c.EffectiveType(), Special: c.Special})
	}
	return out
}

// FrozenTags returns the recorded freeze tags in ascending order.
func (t *Table) FrozenTags() []uint32 {
	return slices.Sorted(maps.Keys(t.Frozen))
}

// Clone deep-copies the committed parts of the table.
func (t *Table) Clone() *Table {
	out := *t
	out.Columns = t.Columns.Clone()
	out.Indexes = t.Indexes.Clone()
	out.Projections = t.Projections.Clone()
	out.Constraints = t.Constraints.Clone()
	out.Frozen = maps.Clone(t.Frozen)
	out.Settings = maps.Clone(t.Settings)
	return &out
}

// Database is a database definition.
type Database struct {
	ID      uint32
	Engine  sqltree.DatabaseEngine
	Cluster string
	// BackupNumber links a Backup-engine database to the backup it reads.
	BackupNumber uint32
	Comment      string
	Status       sqltree.AttachStatus
}

// Ref returns a reference to the database.
func (d *Database) Ref() sqltree.ObjectRef {
	return sqltree.Database(d.ID)
}

// Clone copies the database.
func (d *Database) Clone() *Database {
	out := *d
	return &out
}

// View is a view or materialized view.
type View struct {
	ID            uint32
	DB            sqltree.DatabaseRef
	Engine        sqltree.TableEngine
	Materialized  bool
	Refreshable   bool
	Deterministic bool
	WithCols      bool
	// Cols holds the pinned output column ids c0..cN.
	Cols        []uint32
	StagedNCols uint32
	Status      sqltree.AttachStatus
	Cluster     string
}

// Ref returns a reference to the view.
func (v *View) Ref() sqltree.ObjectRef {
	return sqltree.View(v.ID, v.DB)
}

// Clone copies the view.
func (v *View) Clone() *View {
	out := *v
	out.Cols = slices.Clone(v.Cols)
	return &out
}

// Dictionary is a dictionary over a source table.
type Dictionary struct {
	ID            uint32
	DB            sqltree.DatabaseRef
	Fields        []Field
	Layout        string
	Source        sqltree.ObjectRef
	Deterministic bool
	Status        sqltree.AttachStatus
	Cluster       string
}

// Ref returns a reference to the dictionary.
func (d *Dictionary) Ref() sqltree.ObjectRef {
	return sqltree.Dictionary(d.ID, d.DB)
}

// Clone copies the dictionary.
func (d *Dictionary) Clone() *Dictionary {
	out := *d
	out.Fields = make([]Field, len(d.Fields))
	for i, f := range d.Fields {
		out.Fields[i] = Field{Path: f.Path, Type: f.Type.Clone(), Special: f.Special}
	}
	return &out
}

// Function is a SQL user-defined function. Functions are never detached.
type Function struct {
	ID            uint32
	Arity         uint32
	Deterministic bool
	Cluster       string
}

// Ref returns a reference to the function.
func (f *Function) Ref() sqltree.ObjectRef {
	return sqltree.Function(f.ID)
}

// Clone copies the function.
func (f *Function) Clone() *Function {
	out := *f
	return &out
}

// Backup is a by-value snapshot of the objects a BACKUP statement covered.
type Backup struct {
	Number       uint32
	Target       sqltree.BackupTarget
	Params       []string
	Format       string
	Tables       map[uint32]*Table
	Views        map[uint32]*View
	Dictionaries map[uint32]*Dictionary
	Databases    map[uint32]*Database
	Partition    string
	SystemTable  string
	All          bool
	AllTemporary bool
}

// NewBackup returns an empty backup.
func NewBackup(number uint32, target sqltree.BackupTarget, params []string) *Backup {
	return &Backup{
		Number:       number,
		Target:       target,
		Params:       params,
		Tables:       make(map[uint32]*Table),
		Views:        make(map[uint32]*View),
		Dictionaries: make(map[uint32]*Dictionary),
		Databases:    make(map[uint32]*Database),
	}
}

// Empty reports whether the backup holds no catalog object.
func (b *Backup) Empty() bool {
	return len(b.Tables)+len(b.Views)+len(b.Dictionaries)+len(b.Databases) == 0
}
