package sqltree

import (
	"slices"
	"strings"
)

// Type is a column type. The concrete variants are Scalar, Nullable,
// LowCardinality, Array, Map, Tuple and Nested.
type Type interface {
	String() string
	Clone() Type
	typeNode()
}

// Family groups scalar types by the kind of literal they accept.
type Family uint8

// Family values.
const (
	FamilyInt Family = iota
	FamilyUInt
	FamilyFloat
	FamilyDecimal
	FamilyBool
	FamilyString
	FamilyFixedString
	FamilyDate
	FamilyDateTime
	FamilyUUID
	FamilyIPv4
	FamilyIPv6
	FamilyEnum
	FamilyJSON
)

// Scalar is a leaf type such as Int32 or DateTime64(3).
type Scalar struct {
	Name   string
	Family Family
}

// Nullable wraps a type in Nullable(...).
type Nullable struct {
	Elem Type
}

// LowCardinality wraps a type in LowCardinality(...).
type LowCardinality struct {
	Elem Type
}

// Array is Array(elem).
type Array struct {
	Elem Type
}

// Map is Map(key, value).
type Map struct {
	Key   Type
	Value Type
}

// Tuple is Tuple(elem, ...).
type Tuple struct {
	Elems []Type
}

// NestedField is one named sub-column of a Nested type.
type NestedField struct {
	ID   uint32
	Type Type
}

// Nested is Nested(c1 T1, c2 T2, ...). Sub-columns keep their declared
// order.
type Nested struct {
	Fields []NestedField
}

func (Scalar) typeNode()         {}
func (Nullable) typeNode()       {}
func (LowCardinality) typeNode() {}
func (Array) typeNode()          {}
func (Map) typeNode()            {}
func (Tuple) typeNode()          {}
func (*Nested) typeNode()        {}

func (t Scalar) String() string         { return t.Name }
func (t Nullable) String() string       { return "Nullable(" + t.Elem.String() + ")" }
func (t LowCardinality) String() string { return "LowCardinality(" + t.Elem.String() + ")" }
func (t Array) String() string          { return "Array(" + t.Elem.String() + ")" }
func (t Map) String() string            { return "Map(" + t.Key.String() + ", " + t.Value.String() + ")" }

func (t Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "Tuple(" + strings.Join(parts, ", ") + ")"
}

func (t *Nested) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = ColumnName(f.ID) + " " + f.Type.String()
	}
	return "Nested(" + strings.Join(parts, ", ") + ")"
}

func (t Scalar) Clone() Type         { return t }
func (t Nullable) Clone() Type       { return Nullable{Elem: t.Elem.Clone()} }
func (t LowCardinality) Clone() Type { return LowCardinality{Elem: t.Elem.Clone()} }
func (t Array) Clone() Type          { return Array{Elem: t.Elem.Clone()} }
func (t Map) Clone() Type            { return Map{Key: t.Key.Clone(), Value: t.Value.Clone()} }

func (t Tuple) Clone() Type {
	elems := make([]Type, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.Clone()
	}
	return Tuple{Elems: elems}
}

func (t *Nested) Clone() Type {
	fields := make([]NestedField, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = NestedField{ID: f.ID, Type: f.Type.Clone()}
	}
	return &Nested{Fields: fields}
}

// Field returns the index of sub-column id, or -1.
func (t *Nested) Field(id uint32) int {
	return slices.IndexFunc(t.Fields, func(f NestedField) bool { return f.ID == id })
}

// Remove deletes sub-column id and reports whether it was present.
func (t *Nested) Remove(id uint32) bool {
	i := t.Field(id)
	if i < 0 {
		return false
	}
	t.Fields = slices.Delete(t.Fields, i, i+1)
	return true
}

// Rename relabels sub-column from as to and reports whether it was present.
func (t *Nested) Rename(from, to uint32) bool {
	i := t.Field(from)
	if i < 0 {
		return false
	}
	t.Fields[i].ID = to
	return true
}

// Unwrap strips Nullable and LowCardinality wrappers.
func Unwrap(t Type) Type {
	for {
		switch v := t.(type) {
		case Nullable:
			t = v.Elem
		case LowCardinality:
			t = v.Elem
		default:
			return t
		}
	}
}

// IsNested reports whether t is a Nested type.
func IsNested(t Type) bool {
	_, ok := t.(*Nested)
	return ok
}

// Comparable reports whether values of t can appear in ORDER BY, PARTITION
// BY and primary keys.
func Comparable(t Type) bool {
	switch v := Unwrap(t).(type) {
	case Scalar:
		return v.Family != FamilyJSON
	case Tuple:
		for _, e := range v.Elems {
			if !Comparable(e) {
				return false
			}
		}
		return true
	case Array:
		return Comparable(v.Elem)
	}
	return false
}
