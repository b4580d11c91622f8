package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Value renders a random literal of type t.
func (g *Generator) Value(t sqltree.Type) string {
	switch v := t.(type) {
	case sqltree.Scalar:
		return g.scalarValue(v)
	case sqltree.Nullable:
		if g.rng.NextSmallNumber() < 2 {
			return "NULL"
		}
		return g.Value(v.Elem)
	case sqltree.LowCardinality:
		return g.Value(v.Elem)
	case sqltree.Array:
		n := g.rng.RandomInt(0, g.limits.MaxWidth)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = g.Value(v.Elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case sqltree.Map:
		n := g.rng.RandomInt(0, g.limits.MaxWidth)
		parts := make([]string, 0, 2*n)
		for i := uint32(0); i < n; i++ {
			parts = append(parts, g.Value(v.Key), g.Value(v.Value))
		}
		return "map(" + strings.Join(parts, ", ") + ")"
	case sqltree.Tuple:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = g.Value(e)
		}
		return "tuple(" + strings.Join(parts, ", ") + ")"
	case *sqltree.Nested:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = g.Value(sqltree.Array{Elem: f.Type})
		}
		return strings.Join(parts, ", ")
	}
	return "NULL"
}

// Literal returns a random literal expression of type t.
func (g *Generator) Literal(t sqltree.Type) sqltree.Expr {
	return sqltree.Lit(g.Value(t))
}

var intBits = map[string]uint{
	"Int8": 8, "Int16": 16, "Int32": 32, "Int64": 64,
	"UInt8": 8, "UInt16": 16, "UInt32": 32, "UInt64": 64,
}

func (g *Generator) scalarValue(s sqltree.Scalar) string {
	switch s.Family {
	case sqltree.FamilyInt:
		if g.rng.NextSmallNumber() < 3 {
			return random.Pick(g.rng, []string{"0", "1", "-1"})
		}
		bits := intBits[s.Name]
		return strconv.FormatInt(g.rng.NextInt64()>>(64-bits), 10)
	case sqltree.FamilyUInt:
		if g.rng.NextSmallNumber() < 3 {
			return random.Pick(g.rng, []string{"0", "1"})
		}
		bits := intBits[s.Name]
		return strconv.FormatUint(uint64(g.rng.NextInt64())>>(64-bits), 10)
	case sqltree.FamilyFloat:
		if g.rng.NextSmallNumber() < 3 {
			return random.Pick(g.rng, []string{"0", "-0.0", "nan", "inf", "-inf", "1e-30"})
		}
		return strconv.FormatFloat((g.rng.NextFloat64()-0.5)*2e6, 'g', -1, 64)
	case sqltree.FamilyDecimal:
		return fmt.Sprintf("%d.%04d", int64(g.rng.RandomInt(0, 1_000_000))-500_000, g.rng.RandomInt(0, 9999))
	case sqltree.FamilyBool:
		if g.rng.NextBool() {
			return "TRUE"
		}
		return "FALSE"
	case sqltree.FamilyString:
		return g.rng.NextString("'", true, 6)
	case sqltree.FamilyFixedString:
		n := g.rng.RandomInt(0, 8)
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('a' + g.rng.RandomInt(0, 25))
		}
		return sqltree.Quote(string(b))
	case sqltree.FamilyDate:
		return sqltree.Quote(g.date())
	case sqltree.FamilyDateTime:
		v := fmt.Sprintf("%s %02d:%02d:%02d", g.date(), g.rng.RandomInt(0, 23), g.rng.RandomInt(0, 59), g.rng.RandomInt(0, 59))
		if strings.HasPrefix(s.Name, "DateTime64") {
			v += fmt.Sprintf(".%03d", g.rng.RandomInt(0, 999))
		}
		return sqltree.Quote(v)
	case sqltree.FamilyUUID:
		return sqltree.Quote(fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
			g.rng.NextUint32(), g.rng.RandomInt(0, 0xffff), g.rng.RandomInt(0, 0xffff),
			g.rng.RandomInt(0, 0xffff), uint64(g.rng.NextInt64())&0xffffffffffff))
	case sqltree.FamilyIPv4:
		return sqltree.Quote(fmt.Sprintf("%d.%d.%d.%d",
			g.rng.RandomInt(0, 255), g.rng.RandomInt(0, 255), g.rng.RandomInt(0, 255), g.rng.RandomInt(0, 255)))
	case sqltree.FamilyIPv6:
		return sqltree.Quote(fmt.Sprintf("2001:db8::%x:%x", g.rng.RandomInt(0, 0xffff), g.rng.RandomInt(0, 0xffff)))
	case sqltree.FamilyEnum:
		return sqltree.Quote(random.Pick(g.rng, enumLabels))
	}
	return "NULL"
}

func (g *Generator) date() string {
	return fmt.Sprintf("%04d-%02d-%02d", g.rng.RandomInt(1970, 2105), g.rng.RandomInt(1, 12), g.rng.RandomInt(1, 28))
}
