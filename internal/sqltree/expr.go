package sqltree

// Expr is an expression node.
type Expr interface {
	exprNode()
}

// Literal is a pre-rendered literal such as 1, 'abc' or [1, 2].
type Literal struct {
	Text string
}

// Ident is an unqualified identifier, e.g. a lambda parameter.
type Ident struct {
	Name string
}

// ColumnRef references a column, optionally qualified by a table alias.
type ColumnRef struct {
	Qualifier string
	Path      ColumnPath
}

// Star is * or t.*, optionally with EXCEPT.
type Star struct {
	Qualifier string
	Except    []ColumnPath
}

// FuncCall is name(args...).
type FuncCall struct {
	Name     string
	Distinct bool
	Args     []Expr
}

// BinaryExpr is left op right.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is op operand, e.g. NOT x or -x.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Expr Expr
	Type Type
}

// IntervalExpr is INTERVAL n unit.
type IntervalExpr struct {
	Value uint32
	Unit  string
}

// TupleExpr is (a, b, ...).
type TupleExpr struct {
	Elems []Expr
}

// SubqueryExpr is a parenthesised scalar subquery.
type SubqueryExpr struct {
	Select *Select
}

func (*Literal) exprNode()      {}
func (*Ident) exprNode()        {}
func (*ColumnRef) exprNode()    {}
func (*Star) exprNode()         {}
func (*FuncCall) exprNode()     {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*CastExpr) exprNode()     {}
func (*IntervalExpr) exprNode() {}
func (*TupleExpr) exprNode()    {}
func (*SubqueryExpr) exprNode() {}

// Lit returns a literal node.
func Lit(text string) *Literal {
	return &Literal{Text: text}
}

// ColRef returns an unqualified reference to path.
func ColRef(path ColumnPath) *ColumnRef {
	return &ColumnRef{Path: path}
}

// Call returns name(args...).
func Call(name string, args ...Expr) *FuncCall {
	return &FuncCall{Name: name, Args: args}
}

// Binary returns left op right.
func Binary(op string, left, right Expr) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: left, Right: right}
}

// True is the literal TRUE.
func True() Expr {
	return Lit("TRUE")
}

// Select is a SELECT query body.
type Select struct {
	Distinct bool
	Items    []SelectItem
	From     []FromItem
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    Expr
	Settings []SettingValue
}

// SelectItem is one projected expression with an optional alias.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// FromItem is one element of the FROM clause. Exactly one of Table,
// Function and Subquery is set; items after the first are cross joined.
type FromItem struct {
	Table    *ObjectRef
	Function *TableFunction
	Subquery *Select
	Alias    string
	Final    bool
}

// TableFunction is a table function call such as remote(...) or file(...).
type TableFunction struct {
	Name string
	Args []Expr
}

// OrderItem is one ORDER BY element.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SettingValue is name = value; Value is pre-rendered.
type SettingValue struct {
	Name  string
	Value string
}

// Tables returns the catalog objects referenced directly in the FROM clause,
// descending into derived tables.
func (s *Select) Tables() []ObjectRef {
	var out []ObjectRef
	for _, f := range s.From {
		switch {
		case f.Table != nil:
			out = append(out, *f.Table)
		case f.Subquery != nil:
			out = append(out, f.Subquery.Tables()...)
		}
	}
	return out
}
