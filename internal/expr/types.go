// Package expr synthesises typed column types, literal values, expressions,
// predicates and SELECT bodies for the statement generator.
package expr

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Limits bounds the size of generated expressions.
type Limits struct {
	MaxDepth uint32
	MaxWidth uint32
}

// DefaultLimits are used when a limit is zero.
var DefaultLimits = Limits{MaxDepth: 3, MaxWidth: 3}

// Generator produces random types, values and expressions from a shared
// random source.
type Generator struct {
	rng    *random.Generator
	limits Limits
}

// New returns a generator drawing from rng.
func New(rng *random.Generator, limits Limits) *Generator {
	if limits.MaxDepth == 0 {
		limits.MaxDepth = DefaultLimits.MaxDepth
	}
	if limits.MaxWidth == 0 {
		limits.MaxWidth = DefaultLimits.MaxWidth
	}
	return &Generator{rng: rng, limits: limits}
}

var enumLabels = []string{"a", "b", "c"}

var scalars = []sqltree.Scalar{
	{Name: "Int8", Family: sqltree.FamilyInt},
	{Name: "Int16", Family: sqltree.FamilyInt},
	{Name: "Int32", Family: sqltree.FamilyInt},
	{Name: "Int64", Family: sqltree.FamilyInt},
	{Name: "UInt8", Family: sqltree.FamilyUInt},
	{Name: "UInt16", Family: sqltree.FamilyUInt},
	{Name: "UInt32", Family: sqltree.FamilyUInt},
	{Name: "UInt64", Family: sqltree.FamilyUInt},
	{Name: "Float32", Family: sqltree.FamilyFloat},
	{Name: "Float64", Family: sqltree.FamilyFloat},
	{Name: "Decimal(18, 4)", Family: sqltree.FamilyDecimal},
	{Name: "Bool", Family: sqltree.FamilyBool},
	{Name: "String", Family: sqltree.FamilyString},
	{Name: "FixedString(8)", Family: sqltree.FamilyFixedString},
	{Name: "Date", Family: sqltree.FamilyDate},
	{Name: "Date32", Family: sqltree.FamilyDate},
	{Name: "DateTime", Family: sqltree.FamilyDateTime},
	{Name: "DateTime64(3)", Family: sqltree.FamilyDateTime},
	{Name: "UUID", Family: sqltree.FamilyUUID},
	{Name: "IPv4", Family: sqltree.FamilyIPv4},
	{Name: "IPv6", Family: sqltree.FamilyIPv6},
	{Name: "Enum8('a' = 1, 'b' = 2, 'c' = 3)", Family: sqltree.FamilyEnum},
}

// Scalar returns a random scalar type.
func (g *Generator) Scalar() sqltree.Scalar {
	return random.Pick(g.rng, scalars)
}

// IntegerScalar returns a random signed or unsigned integer type.
func (g *Generator) IntegerScalar() sqltree.Scalar {
	return random.Pick(g.rng, scalars[:8])
}

// Type returns a random column type. Nested types are only produced when
// nextID is non-nil; it supplies the sub-column ids.
func (g *Generator) Type(nextID func() uint32) sqltree.Type {
	return g.typeAt(0, nextID)
}

func (g *Generator) typeAt(depth uint32, nextID func() uint32) sqltree.Type {
	composite := depth < g.limits.MaxDepth
	n := g.rng.NextMediumNumber()
	switch {
	case n <= 55 || !composite:
		return g.Scalar()
	case n <= 65:
		return sqltree.Nullable{Elem: g.Scalar()}
	case n <= 72:
		return sqltree.LowCardinality{Elem: g.lowCardinalityElem()}
	case n <= 82:
		return sqltree.Array{Elem: g.typeAt(depth+1, nil)}
	case n <= 88:
		return sqltree.Map{Key: g.mapKey(), Value: g.typeAt(depth+1, nil)}
	case n <= 95 || nextID == nil || depth > 0:
		width := g.rng.RandomInt(1, g.limits.MaxWidth)
		elems := make([]sqltree.Type, width)
		for i := range elems {
			elems[i] = g.typeAt(depth+1, nil)
		}
		return sqltree.Tuple{Elems: elems}
	default:
		width := g.rng.RandomInt(1, g.limits.MaxWidth)
		fields := make([]sqltree.NestedField, width)
		for i := range fields {
			fields[i] = sqltree.NestedField{ID: nextID(), Type: g.typeAt(depth+1, nil)}
		}
		return &sqltree.Nested{Fields: fields}
	}
}

func (g *Generator) lowCardinalityElem() sqltree.Type {
	base := random.Pick(g.rng, []sqltree.Scalar{
		{Name: "String", Family: sqltree.FamilyString},
		{Name: "FixedString(8)", Family: sqltree.FamilyFixedString},
		{Name: "Int32", Family: sqltree.FamilyInt},
		{Name: "UInt64", Family: sqltree.FamilyUInt},
		{Name: "Date", Family: sqltree.FamilyDate},
	})
	if g.rng.NextSmallNumber() < 4 {
		return sqltree.Nullable{Elem: base}
	}
	return base
}

func (g *Generator) mapKey() sqltree.Type {
	return random.Pick(g.rng, []sqltree.Scalar{
		{Name: "String", Family: sqltree.FamilyString},
		{Name: "Int32", Family: sqltree.FamilyInt},
		{Name: "UInt64", Family: sqltree.FamilyUInt},
		{Name: "Date", Family: sqltree.FamilyDate},
		{Name: "UUID", Family: sqltree.FamilyUUID},
	})
}

// Codecs returns a random compression codec chain.
func (g *Generator) Codecs() []string {
	chains := [][]string{
		{"NONE"},
		{"LZ4"},
		{"LZ4HC(9)"},
		{"ZSTD(1)"},
		{"ZSTD(3)"},
		{"Delta", "ZSTD"},
		{"T64", "LZ4"},
	}
	return random.Pick(g.rng, chains)
}

// Structure renders fields as a generateRandom structure string.
func Structure(fields []catalog.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("`%s` %s", f.Path.String(), f.Type.String())
	}
	return strings.Join(parts, ", ")
}
