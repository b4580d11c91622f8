package expr

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsNested(t sqltree.Type) bool {
	switch v := t.(type) {
	case *sqltree.Nested:
		return true
	case sqltree.Nullable:
		return containsNested(v.Elem)
	case sqltree.LowCardinality:
		return containsNested(v.Elem)
	case sqltree.Array:
		return containsNested(v.Elem)
	case sqltree.Map:
		return containsNested(v.Key) || containsNested(v.Value)
	case sqltree.Tuple:
		for _, e := range v.Elems {
			if containsNested(e) {
				return true
			}
		}
	}
	return false
}

func TestType_NestedOnlyWithIDs(t *testing.T) {
	g := New(random.New(17), Limits{})
	for i := 0; i < 2000; i++ {
		require.False(t, containsNested(g.Type(nil)))
	}

	next := uint32(100)
	nextID := func() uint32 { next++; return next }
	sawNested := false
	for i := 0; i < 5000; i++ {
		typ := g.Type(nextID)
		if n, ok := typ.(*sqltree.Nested); ok {
			sawNested = true
			for _, f := range n.Fields {
				assert.Greater(t, f.ID, uint32(100))
				assert.False(t, containsNested(f.Type), "nested types never nest")
			}
		}
	}
	assert.True(t, sawNested)
}

func TestValue_Shapes(t *testing.T) {
	g := New(random.New(4), Limits{MaxWidth: 2})
	tests := []struct {
		name   string
		typ    sqltree.Type
		prefix string
	}{
		{name: "array", typ: sqltree.Array{Elem: sqltree.Scalar{Name: "Int32", Family: sqltree.FamilyInt}}, prefix: "["},
		{name: "map", typ: sqltree.Map{Key: sqltree.Scalar{Name: "String", Family: sqltree.FamilyString}, Value: sqltree.Scalar{Name: "UInt8", Family: sqltree.FamilyUInt}}, prefix: "map("},
		{name: "tuple", typ: sqltree.Tuple{Elems: []sqltree.Type{sqltree.Scalar{Name: "Bool", Family: sqltree.FamilyBool}}}, prefix: "tuple("},
		{name: "date", typ: sqltree.Scalar{Name: "Date", Family: sqltree.FamilyDate}, prefix: "'"},
		{name: "uuid", typ: sqltree.Scalar{Name: "UUID", Family: sqltree.FamilyUUID}, prefix: "'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				assert.True(t, strings.HasPrefix(g.Value(tt.typ), tt.prefix))
			}
		})
	}
}

func TestValue_IntegersFitTheirWidth(t *testing.T) {
	g := New(random.New(8), Limits{})
	for i := 0; i < 500; i++ {
		v := g.Value(sqltree.Scalar{Name: "Int8", Family: sqltree.FamilyInt})
		assert.LessOrEqual(t, len(strings.TrimPrefix(v, "-")), 3, v)
	}
}

func testTable() *catalog.Table {
	tbl := &catalog.Table{ID: 4}
	tbl.Columns.Put(0, &catalog.Column{ID: 0, Type: sqltree.Scalar{Name: "Int32", Family: sqltree.FamilyInt}})
	tbl.Columns.Put(1, &catalog.Column{ID: 1, Type: sqltree.Scalar{Name: "String", Family: sqltree.FamilyString}, Null: sqltree.NullYes})
	return tbl
}

func TestSelect_DeterministicAndWellFormed(t *testing.T) {
	rels := []Relation{TableRelation(testTable(), "x")}
	render := func(seed uint64) []string {
		g := New(random.New(seed), Limits{})
		var out []string
		for i := 0; i < 50; i++ {
			out = append(out, sqltree.FormatSelect(g.Select(rels, SelectOptions{Columns: 3})))
		}
		return out
	}

	a := render(99)
	assert.Equal(t, a, render(99))
	for _, q := range a {
		assert.Contains(t, q, "FROM t4 AS x")
	}
}

func TestOrderKey_SkipsNullable(t *testing.T) {
	g := New(random.New(2), Limits{})
	cols := Columns([]Relation{TableRelation(testTable(), "")})
	for i := 0; i < 50; i++ {
		for _, k := range g.OrderKey(cols, 2) {
			assert.Equal(t, "c0", sqltree.FormatExpr(k))
		}
	}
}

func TestStructure(t *testing.T) {
	assert.Equal(t, "`c0` Int32, `c1` Nullable(String)", Structure(testTable().Fields(true)))
}
