// Package sqltree defines the statement tree the generator populates and
// renders it as ClickHouse SQL.
//
// Objects are referenced by kind and catalog id; names are derived from the
// id (t7, v2, d3, f1, c4, ...), so a tree never carries a name that does not
// map back to a catalog entry.
package sqltree

import (
	"strconv"
	"strings"
)

// ObjectKind identifies the kind of a named catalog object.
type ObjectKind uint8

// ObjectKind values.
const (
	KindTable ObjectKind = iota
	KindView
	KindDictionary
	KindDatabase
	KindFunction
	KindSystemTable
)

// String returns the SQL keyword for the kind.
func (k ObjectKind) String() string {
	switch k {
	case KindTable, KindSystemTable:
		return "TABLE"
	case KindView:
		return "VIEW"
	case KindDictionary:
		return "DICTIONARY"
	case KindDatabase:
		return "DATABASE"
	case KindFunction:
		return "FUNCTION"
	}
	return "UNKNOWN"
}

func (k ObjectKind) prefix() string {
	switch k {
	case KindTable:
		return "t"
	case KindView:
		return "v"
	case KindDictionary, KindDatabase:
		return "d"
	case KindFunction:
		return "f"
	}
	return ""
}

// DatabaseRef is the owning-database backlink of an object. The zero value
// means the session's default database.
type DatabaseRef struct {
	ID    uint32
	Valid bool
}

// InDatabase returns a reference to database id.
func InDatabase(id uint32) DatabaseRef {
	return DatabaseRef{ID: id, Valid: true}
}

// Is reports whether the reference points at database id.
func (d DatabaseRef) Is(id uint32) bool {
	return d.Valid && d.ID == id
}

// ObjectRef references a catalog object, or a system table by name.
type ObjectRef struct {
	Kind   ObjectKind
	ID     uint32
	DB     DatabaseRef
	System string
}

// Table returns a reference to table id.
func Table(id uint32, db DatabaseRef) ObjectRef {
	return ObjectRef{Kind: KindTable, ID: id, DB: db}
}

// View returns a reference to view id.
func View(id uint32, db DatabaseRef) ObjectRef {
	return ObjectRef{Kind: KindView, ID: id, DB: db}
}

// Dictionary returns a reference to dictionary id.
func Dictionary(id uint32, db DatabaseRef) ObjectRef {
	return ObjectRef{Kind: KindDictionary, ID: id, DB: db}
}

// Database returns a reference to database id.
func Database(id uint32) ObjectRef {
	return ObjectRef{Kind: KindDatabase, ID: id}
}

// Function returns a reference to function id.
func Function(id uint32) ObjectRef {
	return ObjectRef{Kind: KindFunction, ID: id}
}

// SystemTable returns a reference to system.<name>.
func SystemTable(name string) ObjectRef {
	return ObjectRef{Kind: KindSystemTable, System: name}
}

// Name returns the unqualified object name.
func (r ObjectRef) Name() string {
	if r.Kind == KindSystemTable {
		return r.System
	}
	return r.Kind.prefix() + uitoa(r.ID)
}

// String returns the qualified object name.
func (r ObjectRef) String() string {
	switch {
	case r.Kind == KindSystemTable:
		return "system." + r.System
	case r.DB.Valid:
		return DatabaseName(r.DB.ID) + "." + r.Name()
	}
	return r.Name()
}

// DatabaseName returns the name of database id.
func DatabaseName(id uint32) string {
	return "d" + uitoa(id)
}

// ColumnName returns the name of column id.
func ColumnName(id uint32) string {
	return "c" + uitoa(id)
}

// IndexName returns the name of index id.
func IndexName(id uint32) string {
	return "i" + uitoa(id)
}

// ProjectionName returns the name of projection id.
func ProjectionName(id uint32) string {
	return "p" + uitoa(id)
}

// ConstraintName returns the name of constraint id.
func ConstraintName(id uint32) string {
	return "cs" + uitoa(id)
}

// ColumnPath addresses a top-level column or one sub-column of a nested
// column.
type ColumnPath struct {
	Col uint32
	Sub []uint32
}

// Col returns the path of top-level column id.
func Col(id uint32) ColumnPath {
	return ColumnPath{Col: id}
}

// SubCol returns the path of sub-column sub inside nested column id.
func SubCol(id, sub uint32) ColumnPath {
	return ColumnPath{Col: id, Sub: []uint32{sub}}
}

// IsNested reports whether the path addresses a sub-column.
func (p ColumnPath) IsNested() bool {
	return len(p.Sub) > 0
}

// String renders the path as c1 or c1.c3.
func (p ColumnPath) String() string {
	parts := make([]string, 0, len(p.Sub)+1)
	parts = append(parts, ColumnName(p.Col))
	for _, s := range p.Sub {
		parts = append(parts, ColumnName(s))
	}
	return strings.Join(parts, ".")
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
