package expr

import (
	"strconv"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Column is a field reachable from a query scope, qualified by the alias of
// its relation. A nil Type means the type is unknown.
type Column struct {
	Qualifier string
	Field     catalog.Field
}

// Ref returns a reference to the column.
func (c Column) Ref() sqltree.Expr {
	return &sqltree.ColumnRef{Qualifier: c.Qualifier, Path: c.Field.Path}
}

// Relation is one FROM-clause source and the fields it exposes.
type Relation struct {
	Item   sqltree.FromItem
	Fields []catalog.Field
}

// TableRelation exposes every field of t under alias.
func TableRelation(t *catalog.Table, alias string) Relation {
	ref := t.Ref()
	return Relation{
		Item:   sqltree.FromItem{Table: &ref, Alias: alias},
		Fields: t.Fields(false),
	}
}

// ViewRelation exposes the pinned columns of v under alias. View column
// types are not tracked.
func ViewRelation(v *catalog.View, alias string) Relation {
	ref := v.Ref()
	fields := make([]catalog.Field, len(v.Cols))
	for i, id := range v.Cols {
		fields[i] = catalog.Field{Path: sqltree.Col(id)}
	}
	return Relation{Item: sqltree.FromItem{Table: &ref, Alias: alias}, Fields: fields}
}

// DictionaryRelation exposes the attributes of d under alias.
func DictionaryRelation(d *catalog.Dictionary, alias string) Relation {
	ref := d.Ref()
	return Relation{Item: sqltree.FromItem{Table: &ref, Alias: alias}, Fields: d.Fields}
}

// Columns flattens the fields of rels.
func Columns(rels []Relation) []Column {
	var out []Column
	for _, r := range rels {
		for _, f := range r.Fields {
			out = append(out, Column{Qualifier: r.Item.Alias, Field: f})
		}
	}
	return out
}

var (
	anyFuncs     = []string{"cityHash64", "sipHash64", "toString", "isNull", "isNotNull", "toTypeName", "hex"}
	randomFuncs  = []string{"rand", "rand64", "now", "generateUUIDv4"}
	aggregates   = []string{"count", "min", "max", "uniqExact", "argMin", "argMax"}
	comparisons  = []string{"=", "!=", "<", "<=", ">", ">="}
	arithmetic   = []string{"+", "-", "*"}
	connectives  = []string{"AND", "OR"}
	numericKinds = map[sqltree.Family]bool{
		sqltree.FamilyInt: true, sqltree.FamilyUInt: true,
		sqltree.FamilyFloat: true, sqltree.FamilyDecimal: true,
	}
)

func scalarOf(t sqltree.Type) (sqltree.Scalar, bool) {
	if t == nil {
		return sqltree.Scalar{}, false
	}
	s, ok := sqltree.Unwrap(t).(sqltree.Scalar)
	return s, ok
}

func numeric(c Column) bool {
	s, ok := scalarOf(c.Field.Type)
	return ok && numericKinds[s.Family]
}

func typedScalar(c Column) bool {
	_, ok := scalarOf(c.Field.Type)
	return ok
}

func nullable(t sqltree.Type) bool {
	switch v := t.(type) {
	case sqltree.Nullable:
		return true
	case sqltree.LowCardinality:
		return nullable(v.Elem)
	}
	return false
}

func filter(cols []Column, pred func(Column) bool) []Column {
	var out []Column
	for _, c := range cols {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// Expr returns a random expression over cols. With nondeterministic set it
// may call functions such as rand() or now().
func (g *Generator) Expr(cols []Column, nondeterministic bool) sqltree.Expr {
	return g.exprAt(cols, 0, nondeterministic)
}

func (g *Generator) exprAt(cols []Column, depth uint32, nondeterministic bool) sqltree.Expr {
	leaf := depth >= g.limits.MaxDepth
	n := g.rng.NextMediumNumber()
	switch {
	case len(cols) > 0 && (n <= 45 || leaf):
		return random.Pick(g.rng, cols).Ref()
	case n <= 65 || leaf:
		return g.Literal(g.Scalar())
	case n <= 85:
		return sqltree.Call(random.Pick(g.rng, anyFuncs), g.exprAt(cols, depth+1, nondeterministic))
	case nondeterministic && n <= 90:
		return sqltree.Call(random.Pick(g.rng, randomFuncs))
	default:
		return sqltree.Binary(random.Pick(g.rng, arithmetic), g.numericExpr(cols), g.numericExpr(cols))
	}
}

func (g *Generator) numericExpr(cols []Column) sqltree.Expr {
	nums := filter(cols, numeric)
	if len(nums) > 0 && g.rng.NextBool() {
		return random.Pick(g.rng, nums).Ref()
	}
	return g.Literal(g.IntegerScalar())
}

// Predicate returns a random boolean expression over cols whose value is 0,
// 1 or NULL for every row.
func (g *Generator) Predicate(cols []Column) sqltree.Expr {
	return g.predicateAt(cols, 0)
}

func (g *Generator) predicateAt(cols []Column, depth uint32) sqltree.Expr {
	typed := filter(cols, typedScalar)
	leaf := depth >= g.limits.MaxDepth
	n := g.rng.NextMediumNumber()
	switch {
	case len(typed) > 0 && n <= 35:
		c := random.Pick(g.rng, typed)
		return sqltree.Binary(random.Pick(g.rng, comparisons), c.Ref(), g.Literal(sqltree.Unwrap(c.Field.Type)))
	case len(typed) > 0 && n <= 45:
		c := random.Pick(g.rng, typed)
		elem := sqltree.Unwrap(c.Field.Type)
		return sqltree.Binary("IN", c.Ref(), &sqltree.TupleExpr{Elems: []sqltree.Expr{g.Literal(elem), g.Literal(elem)}})
	case len(cols) > 0 && n <= 60:
		fn := "isNull"
		if g.rng.NextBool() {
			fn = "isNotNull"
		}
		return sqltree.Call(fn, random.Pick(g.rng, cols).Ref())
	case len(cols) > 0 && n <= 70:
		mod := g.rng.RandomInt(2, 5)
		hash := sqltree.Call("cityHash64", random.Pick(g.rng, cols).Ref())
		return sqltree.Binary("=",
			sqltree.Binary("%", hash, sqltree.Lit(strconv.FormatUint(uint64(mod), 10))),
			sqltree.Lit(strconv.FormatUint(uint64(g.rng.RandomInt(0, mod-1)), 10)))
	case !leaf && n <= 85:
		return sqltree.Binary(random.Pick(g.rng, connectives), g.predicateAt(cols, depth+1), g.predicateAt(cols, depth+1))
	case !leaf && n <= 92:
		return &sqltree.UnaryExpr{Op: "NOT", Operand: g.predicateAt(cols, depth+1)}
	default:
		return sqltree.Lit(random.Pick(g.rng, []string{"0", "1"}))
	}
}

// LambdaBody returns a deterministic expression over the named parameters.
func (g *Generator) LambdaBody(params []string) sqltree.Expr {
	if len(params) == 0 {
		return g.Literal(g.Scalar())
	}
	args := make([]sqltree.Expr, len(params))
	for i, p := range params {
		args[i] = &sqltree.Ident{Name: p}
	}
	switch g.rng.NextSmallNumber() {
	case 1, 2, 3:
		return sqltree.Call("cityHash64", args...)
	case 4, 5:
		return sqltree.Call("tuple", args...)
	case 6, 7:
		strs := make([]sqltree.Expr, len(args))
		for i, a := range args {
			strs[i] = sqltree.Call("toString", a)
		}
		return sqltree.Call("concat", append(strs, sqltree.Lit("''"))...)
	default:
		return sqltree.Call("isNull", random.Pick(g.rng, args))
	}
}

// SelectOptions shape a generated query.
type SelectOptions struct {
	Columns          uint32
	Nondeterministic bool
	NoAggregates     bool
}

// Select returns a random query over rels projecting opts.Columns
// expressions.
func (g *Generator) Select(rels []Relation, opts SelectOptions) *sqltree.Select {
	cols := Columns(rels)
	ncols := max(opts.Columns, 1)
	s := &sqltree.Select{}
	for _, r := range rels {
		s.From = append(s.From, r.Item)
	}

	mode := g.rng.NextMediumNumber()
	aggregate := !opts.NoAggregates && mode <= 15
	grouped := !opts.NoAggregates && !aggregate && mode <= 30 && ncols > 1

	for i := uint32(0); i < ncols; i++ {
		e := g.Expr(cols, opts.Nondeterministic)
		switch {
		case aggregate:
			e = g.aggregate(e, cols)
		case grouped && i == ncols-1:
			e = sqltree.Call("count")
		case grouped:
			s.GroupBy = append(s.GroupBy, e)
		}
		s.Items = append(s.Items, sqltree.SelectItem{Expr: e})
	}

	if len(rels) > 0 && g.rng.NextBool() {
		s.Where = g.Predicate(cols)
	}
	if grouped && g.rng.NextSmallNumber() < 3 {
		s.Having = sqltree.Binary(">", sqltree.Call("count"), sqltree.Lit("0"))
	}
	if !aggregate && g.rng.NextSmallNumber() < 4 {
		for _, it := range s.Items {
			s.OrderBy = append(s.OrderBy, sqltree.OrderItem{Expr: it.Expr, Desc: g.rng.NextBool()})
		}
	}
	if g.rng.NextSmallNumber() < 3 {
		s.Limit = sqltree.Lit(strconv.FormatUint(uint64(g.rng.NextLargeNumber()), 10))
	}
	return s
}

func (g *Generator) aggregate(e sqltree.Expr, cols []Column) sqltree.Expr {
	fn := random.Pick(g.rng, aggregates)
	switch fn {
	case "count":
		return sqltree.Call("count")
	case "argMin", "argMax":
		return sqltree.Call(fn, e, g.Expr(cols, false))
	}
	return sqltree.Call(fn, e)
}

// OrderKey returns up to n comparable column references of cols suitable
// for ORDER BY, PARTITION BY or PRIMARY KEY.
func (g *Generator) OrderKey(cols []Column, n uint32) []sqltree.Expr {
	keys := filter(cols, func(c Column) bool {
		t := c.Field.Type
		return t != nil && sqltree.Comparable(t) && !nullable(t) && !c.Field.Path.IsNested()
	})
	if len(keys) == 0 || n == 0 {
		return nil
	}
	chosen := random.Sample(g.rng, keys, int(g.rng.RandomInt(1, n)))
	out := make([]sqltree.Expr, len(chosen))
	for i, c := range chosen {
		out[i] = c.Ref()
	}
	return out
}
