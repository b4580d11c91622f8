package sqltree

import (
	"bytes"
	"strconv"
	"strings"
)

// Format renders st as one ClickHouse statement without a trailing
// semicolon.
func Format(st *Statement) string {
	p := newPrinter()
	p.statement(st)
	return p.String()
}

// FormatSelect renders a query body.
func FormatSelect(s *Select) string {
	p := newPrinter()
	p.selectBody(s)
	return p.String()
}

// FormatExpr renders one expression.
func FormatExpr(e Expr) string {
	p := newPrinter()
	p.expr(e)
	return p.String()
}

// Quote returns s as a single-quoted string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

type printer struct {
	output *bytes.Buffer
}

func newPrinter() *printer {
	return &printer{output: &bytes.Buffer{}}
}

func (p *printer) String() string {
	return p.output.String()
}

func (p *printer) write(parts ...string) {
	for _, s := range parts {
		p.output.WriteString(s)
	}
}

func (p *printer) space() {
	p.output.WriteByte(' ')
}

// formatList prints count items through format, separated by sep.
func (p *printer) formatList(count int, format func(i int), sep string) {
	for i := 0; i < count; i++ {
		if i > 0 {
			p.write(sep)
		}
		format(i)
	}
}

func (p *printer) exprList(exprs []Expr) {
	p.formatList(len(exprs), func(i int) { p.expr(exprs[i]) }, ", ")
}

func (p *printer) pathList(paths []ColumnPath) {
	p.formatList(len(paths), func(i int) { p.write(paths[i].String()) }, ", ")
}

func (p *printer) cluster(name string) {
	if name != "" {
		p.write(" ON CLUSTER ", name)
	}
}

func (p *printer) settings(values []SettingValue) {
	if len(values) == 0 {
		return
	}
	p.write(" SETTINGS ")
	p.settingList(values)
}

func (p *printer) settingList(values []SettingValue) {
	p.formatList(len(values), func(i int) {
		p.write(values[i].Name, " = ", values[i].Value)
	}, ", ")
}

func (p *printer) comment(text string) {
	if text != "" {
		p.write(" COMMENT ", Quote(text))
	}
}

// keyList renders a sorting or partitioning key: a single expression bare,
// several as a tuple, none as tuple().
func (p *printer) keyList(exprs []Expr) {
	switch len(exprs) {
	case 0:
		p.write("tuple()")
	case 1:
		p.expr(exprs[0])
	default:
		p.write("(")
		p.exprList(exprs)
		p.write(")")
	}
}

func (p *printer) statement(st *Statement) {
	switch st.Txn {
	case TxnStart:
		p.write("BEGIN TRANSACTION")
		return
	case TxnCommit:
		p.write("COMMIT")
		return
	case TxnRollback:
		p.write("ROLLBACK")
		return
	}
	if st.Explain {
		p.write("EXPLAIN")
		if st.ExplainKind != ExplainDefault {
			p.write(" ", st.ExplainKind.String())
		}
		if len(st.ExplainOpts) > 0 {
			p.space()
			p.formatList(len(st.ExplainOpts), func(i int) {
				o := st.ExplainOpts[i]
				p.write(o.Name, " = ", strconv.FormatUint(uint64(o.Value), 10))
			}, ", ")
		}
		p.space()
	}
	p.stmt(st.Query)
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *CreateTable:
		p.createTable(s)
	case *CreateView:
		p.createView(s)
	case *CreateDictionary:
		p.createDictionary(s)
	case *CreateDatabase:
		p.write("CREATE DATABASE ", s.Database.String())
		p.cluster(s.Cluster)
		p.write(" ENGINE = ", s.Engine.String())
		if len(s.Args) > 0 {
			p.write("(")
			p.exprList(s.Args)
			p.write(")")
		}
		p.comment(s.Comment)
	case *CreateFunction:
		p.write("CREATE FUNCTION ", s.Function.String())
		p.cluster(s.Cluster)
		p.write(" AS (", strings.Join(s.Params, ", "), ") -> ")
		p.expr(s.Body)
	case *SelectStmt:
		p.selectBody(s.Select)
		if s.Format != "" {
			p.write(" FORMAT ", s.Format)
		}
	case *Drop:
		p.write("DROP ")
		if s.Temporary {
			p.write("TEMPORARY ")
		}
		p.write(s.Object.Kind.String())
		if s.IfExists {
			p.write(" IF EXISTS")
		}
		if s.IfEmpty {
			p.write(" IF EMPTY")
		}
		p.write(" ", s.Object.String())
		p.cluster(s.Cluster)
		if s.Sync {
			p.write(" SYNC")
		}
		p.settings(s.Settings)
	case *Insert:
		p.insert(s)
	case *LightDelete:
		p.write("DELETE FROM ", s.Table.String())
		p.cluster(s.Cluster)
		if s.Partition != nil {
			p.write(" IN ")
			p.partition(*s.Partition)
		}
		p.write(" WHERE ")
		p.expr(s.Where)
		p.settings(s.Settings)
	case *Truncate:
		switch {
		case s.Object.Kind != KindDatabase:
			p.write("TRUNCATE TABLE ", s.Object.String())
		case s.AllTables:
			p.write("TRUNCATE ALL TABLES FROM ", s.Object.String())
		default:
			p.write("TRUNCATE DATABASE ", s.Object.String())
		}
		p.cluster(s.Cluster)
		p.settings(s.Settings)
	case *Optimize:
		p.optimize(s)
	case *Check:
		p.write("CHECK TABLE ", s.Table.String())
		if s.Partition != nil {
			p.space()
			p.partition(*s.Partition)
		}
		p.settings(s.Settings)
	case *Desc:
		p.write("DESCRIBE ")
		switch {
		case s.Object != nil:
			p.write("TABLE ", s.Object.String())
		case s.Function != nil:
			p.write("TABLE ")
			p.tableFunction(s.Function)
		default:
			p.write("(")
			p.selectBody(s.Select)
			p.write(")")
		}
		p.settings(s.Settings)
	case *Exchange:
		p.write("EXCHANGE TABLES ", s.First.String(), " AND ", s.Second.String())
		p.cluster(s.Cluster)
		p.settings(s.Settings)
	case *SetValues:
		p.write("SET ")
		p.settingList(s.Settings)
	case *Attach:
		p.write("ATTACH ", s.Object.Kind.String(), " ", s.Object.String())
		p.cluster(s.Cluster)
		p.settings(s.Settings)
	case *Detach:
		p.write("DETACH ", s.Object.Kind.String(), " ", s.Object.String())
		p.cluster(s.Cluster)
		if s.Permanently {
			p.write(" PERMANENTLY")
		}
		if s.Sync {
			p.write(" SYNC")
		}
		p.settings(s.Settings)
	case *SystemCommand:
		p.write("SYSTEM ", s.Command)
		p.cluster(s.Cluster)
		if s.Target != nil {
			p.write(" ", s.Target.String())
		}
	case *AlterTable:
		p.write("ALTER TABLE ", s.Object.String())
		p.cluster(s.Cluster)
		p.space()
		p.formatList(len(s.Items), func(i int) { p.alterItem(s.Items[i]) }, ", ")
		p.settings(s.Settings)
	case *BackupRestore:
		p.backupRestore(s)
	}
}

func (p *printer) columnDef(c *ColumnDef) {
	p.write(c.Path.String(), " ", c.Type.String())
	switch c.Null {
	case NullYes:
		p.write(" NULL")
	case NullNo:
		p.write(" NOT NULL")
	}
	if c.Default != DefaultNone {
		p.write(" ", c.Default.String())
		if c.DefaultExpr != nil {
			p.space()
			p.expr(c.DefaultExpr)
		}
	}
	if len(c.Codecs) > 0 {
		p.write(" CODEC(", strings.Join(c.Codecs, ", "), ")")
	}
	p.comment(c.Comment)
	if len(c.Settings) > 0 {
		p.write(" SETTINGS (")
		p.settingList(c.Settings)
		p.write(")")
	}
}

func (p *printer) indexDef(ix *IndexDef) {
	p.write("INDEX ", IndexName(ix.ID), " ")
	p.expr(ix.Expr)
	p.write(" TYPE ", ix.Type)
	if ix.Granularity > 0 {
		p.write(" GRANULARITY ", strconv.FormatUint(uint64(ix.Granularity), 10))
	}
}

func (p *printer) projectionDef(pr *ProjectionDef) {
	p.write("PROJECTION ", ProjectionName(pr.ID), " (")
	p.selectBody(pr.Select)
	p.write(")")
}

func (p *printer) constraintDef(c *ConstraintDef) {
	p.write("CONSTRAINT ", ConstraintName(c.ID))
	if c.Assume {
		p.write(" ASSUME ")
	} else {
		p.write(" CHECK ")
	}
	p.expr(c.Expr)
}

func (p *printer) createTable(s *CreateTable) {
	p.write("CREATE ")
	if s.Replace {
		p.write("OR REPLACE ")
	}
	if s.Temporary {
		p.write("TEMPORARY ")
	}
	p.write("TABLE ", s.Table.String())
	p.cluster(s.Cluster)
	p.write(" (")
	n := 0
	next := func() {
		if n > 0 {
			p.write(", ")
		}
		n++
	}
	for i := range s.Columns {
		next()
		p.columnDef(&s.Columns[i])
	}
	for i := range s.Indexes {
		next()
		p.indexDef(&s.Indexes[i])
	}
	for i := range s.Projections {
		next()
		p.projectionDef(&s.Projections[i])
	}
	for i := range s.Constraints {
		next()
		p.constraintDef(&s.Constraints[i])
	}
	p.write(")")
	p.engine(&s.Engine)
	p.comment(s.Comment)
}

func (p *printer) engine(e *EngineDef) {
	p.write(" ENGINE = ", e.Engine.String())
	if len(e.Args) > 0 || e.Engine.IsMergeTree() {
		p.write("(")
		p.exprList(e.Args)
		p.write(")")
	}
	if !e.Engine.IsMergeTree() {
		p.settings(e.Settings)
		return
	}
	p.write(" ORDER BY ")
	p.keyList(e.OrderBy)
	if len(e.PartitionBy) > 0 {
		p.write(" PARTITION BY ")
		p.keyList(e.PartitionBy)
	}
	if len(e.PrimaryKey) > 0 {
		p.write(" PRIMARY KEY ")
		p.keyList(e.PrimaryKey)
	}
	if e.SampleBy != nil {
		p.write(" SAMPLE BY ")
		p.expr(e.SampleBy)
	}
	if e.TTL != nil {
		p.write(" TTL ")
		p.ttl(e.TTL)
	}
	p.settings(e.Settings)
}

func (p *printer) ttl(t *TTLDef) {
	p.expr(t.Expr)
	if t.Action != "" {
		p.write(" ", t.Action)
	}
}

func (p *printer) refresh(r *RefreshDef) {
	if r.Every {
		p.write("REFRESH EVERY ")
	} else {
		p.write("REFRESH AFTER ")
	}
	p.write(strconv.FormatUint(uint64(r.Interval), 10), " ", r.Unit)
	if r.Append {
		p.write(" APPEND")
	}
}

func (p *printer) createView(s *CreateView) {
	p.write("CREATE ")
	if s.Replace {
		p.write("OR REPLACE ")
	}
	if s.Materialized {
		p.write("MATERIALIZED ")
	}
	p.write("VIEW ", s.View.String())
	p.cluster(s.Cluster)
	if s.Refresh != nil {
		p.space()
		p.refresh(s.Refresh)
	}
	if s.To != nil {
		p.write(" TO ", s.To.String())
		if len(s.Columns) > 0 {
			p.write(" (")
			p.pathList(s.Columns)
			p.write(")")
		}
	}
	if s.Engine != nil {
		p.engine(s.Engine)
	}
	if s.Empty {
		p.write(" EMPTY")
	} else if s.Populate {
		p.write(" POPULATE")
	}
	p.write(" AS ")
	p.selectBody(s.Select)
	p.comment(s.Comment)
}

func (p *printer) createDictionary(s *CreateDictionary) {
	p.write("CREATE ")
	if s.Replace {
		p.write("OR REPLACE ")
	}
	p.write("DICTIONARY ", s.Dictionary.String())
	p.cluster(s.Cluster)
	p.write(" (")
	p.formatList(len(s.Columns), func(i int) {
		p.write(s.Columns[i].Path.String(), " ", s.Columns[i].Type.String())
	}, ", ")
	p.write(") PRIMARY KEY ")
	p.pathList(s.PrimaryKey)
	p.write(" SOURCE(CLICKHOUSE(")
	if s.Source.DB.Valid {
		p.write("DB ", Quote(DatabaseName(s.Source.DB.ID)), " ")
	}
	p.write("TABLE ", Quote(s.Source.Name()), "))")
	p.write(" LAYOUT(", s.Layout, "())")
	p.write(" LIFETIME(MIN ", strconv.FormatUint(uint64(s.LifetimeMin), 10),
		" MAX ", strconv.FormatUint(uint64(s.LifetimeMax), 10), ")")
	p.comment(s.Comment)
}

func (p *printer) insert(s *Insert) {
	p.write("INSERT INTO ")
	if s.Function != nil {
		p.write("FUNCTION ")
		p.tableFunction(s.Function)
	} else {
		p.write(s.Table.String())
	}
	if len(s.Columns) > 0 {
		p.write(" (")
		p.pathList(s.Columns)
		p.write(")")
	}
	p.settings(s.Settings)
	switch {
	case s.Random != nil:
		r := s.Random
		p.write(" SELECT * FROM generateRandom(", Quote(r.Structure), ", ",
			strconv.FormatUint(r.Seed, 10), ", ",
			strconv.FormatUint(uint64(r.MaxStringLength), 10), ", ",
			strconv.FormatUint(uint64(r.MaxArrayLength), 10), ") LIMIT ",
			strconv.FormatUint(uint64(r.Limit), 10))
	case s.Select != nil:
		p.space()
		p.selectBody(s.Select)
	default:
		p.write(" VALUES ")
		p.formatList(len(s.Rows), func(i int) {
			p.write("(")
			p.exprList(s.Rows[i])
			p.write(")")
		}, ", ")
	}
}

func (p *printer) optimize(s *Optimize) {
	p.write("OPTIMIZE TABLE ", s.Table.String())
	p.cluster(s.Cluster)
	if s.Partition != nil {
		p.space()
		p.partition(*s.Partition)
	}
	if s.Final {
		p.write(" FINAL")
	}
	if s.Cleanup {
		p.write(" CLEANUP")
	}
	if d := s.Dedup; d != nil {
		p.write(" DEDUPLICATE")
		switch {
		case d.All:
			p.write(" BY *")
			if len(d.Except) > 0 {
				p.write(" EXCEPT (")
				p.pathList(d.Except)
				p.write(")")
			}
		case len(d.Columns) > 0:
			p.write(" BY ")
			p.pathList(d.Columns)
		}
	}
	p.settings(s.Settings)
}

func (p *printer) partition(pe PartitionExpr) {
	switch pe.Kind {
	case PartitionTuple:
		if pe.Value == "" {
			p.write("PARTITION tuple()")
		} else {
			p.write("PARTITION ", pe.Value)
		}
	case PartitionID:
		p.write("PARTITION ID ", Quote(pe.Value))
	case PartitionPart:
		p.write("PART ", Quote(pe.Value))
	case PartitionAll:
		p.write("PARTITION ALL")
	}
}

func (p *printer) inPartition(pe *PartitionExpr) {
	if pe != nil {
		p.write(" IN ")
		p.partition(*pe)
	}
}

func (p *printer) backupRestore(s *BackupRestore) {
	if s.Command == CommandBackup {
		p.write("BACKUP ")
	} else {
		p.write("RESTORE ")
	}
	switch s.Element.Kind {
	case ElementAll:
		p.write("ALL")
	case ElementAllTemporary:
		p.write("ALL TEMPORARY TABLES")
	default:
		o := s.Element.Object
		p.write(o.Kind.String(), " ", o.String())
		if len(s.Element.Partitions) > 0 {
			p.write(" PARTITIONS ")
			p.formatList(len(s.Element.Partitions), func(i int) {
				p.write(Quote(s.Element.Partitions[i].Value))
			}, ", ")
		}
	}
	p.cluster(s.Cluster)
	if s.Command == CommandBackup {
		p.write(" TO ")
	} else {
		p.write(" FROM ")
	}
	p.write(BackupDestination(s.Target, s.Params))
	p.settings(s.Settings)
	if s.Async {
		p.write(" ASYNC")
	}
	if s.Format != "" {
		p.write(" FORMAT ", s.Format)
	}
}

// BackupDestination renders a backup target with its parameters.
func BackupDestination(target BackupTarget, params []string) string {
	if target == TargetNull && len(params) == 0 {
		return target.String()
	}
	quoted := make([]string, len(params))
	for i, v := range params {
		quoted[i] = Quote(v)
	}
	return target.String() + "(" + strings.Join(quoted, ", ") + ")"
}

func (p *printer) tableFunction(tf *TableFunction) {
	p.write(tf.Name, "(")
	p.exprList(tf.Args)
	p.write(")")
}

func (p *printer) selectBody(s *Select) {
	p.write("SELECT ")
	if s.Distinct {
		p.write("DISTINCT ")
	}
	p.formatList(len(s.Items), func(i int) {
		p.expr(s.Items[i].Expr)
		if s.Items[i].Alias != "" {
			p.write(" AS ", s.Items[i].Alias)
		}
	}, ", ")
	if len(s.From) > 0 {
		p.write(" FROM ")
		p.formatList(len(s.From), func(i int) { p.fromItem(&s.From[i]) }, " CROSS JOIN ")
	}
	if s.Where != nil {
		p.write(" WHERE ")
		p.expr(s.Where)
	}
	if len(s.GroupBy) > 0 {
		p.write(" GROUP BY ")
		p.exprList(s.GroupBy)
	}
	if s.Having != nil {
		p.write(" HAVING ")
		p.expr(s.Having)
	}
	if len(s.OrderBy) > 0 {
		p.write(" ORDER BY ")
		p.formatList(len(s.OrderBy), func(i int) {
			p.expr(s.OrderBy[i].Expr)
			if s.OrderBy[i].Desc {
				p.write(" DESC")
			}
		}, ", ")
	}
	if s.Limit != nil {
		p.write(" LIMIT ")
		p.expr(s.Limit)
	}
	p.settings(s.Settings)
}

func (p *printer) fromItem(f *FromItem) {
	switch {
	case f.Table != nil:
		p.write(f.Table.String())
	case f.Function != nil:
		p.tableFunction(f.Function)
	case f.Subquery != nil:
		p.write("(")
		p.selectBody(f.Subquery)
		p.write(")")
	}
	if f.Alias != "" {
		p.write(" AS ", f.Alias)
	}
	if f.Final {
		p.write(" FINAL")
	}
}

func (p *printer) expr(e Expr) {
	switch e := e.(type) {
	case *Literal:
		p.write(e.Text)
	case *Ident:
		p.write(e.Name)
	case *ColumnRef:
		if e.Qualifier != "" {
			p.write(e.Qualifier, ".")
		}
		p.write(e.Path.String())
	case *Star:
		if e.Qualifier != "" {
			p.write(e.Qualifier, ".")
		}
		p.write("*")
		if len(e.Except) > 0 {
			p.write(" EXCEPT (")
			p.pathList(e.Except)
			p.write(")")
		}
	case *FuncCall:
		p.write(e.Name, "(")
		if e.Distinct {
			p.write("DISTINCT ")
		}
		p.exprList(e.Args)
		p.write(")")
	case *BinaryExpr:
		p.write("(")
		p.expr(e.Left)
		p.write(" ", e.Op, " ")
		p.expr(e.Right)
		p.write(")")
	case *UnaryExpr:
		p.write("(", e.Op, " ")
		p.expr(e.Operand)
		p.write(")")
	case *CastExpr:
		p.write("CAST(")
		p.expr(e.Expr)
		p.write(" AS ", e.Type.String(), ")")
	case *IntervalExpr:
		p.write("INTERVAL ", strconv.FormatUint(uint64(e.Value), 10), " ", e.Unit)
	case *TupleExpr:
		p.write("tuple(")
		p.exprList(e.Elems)
		p.write(")")
	case *SubqueryExpr:
		p.write("(")
		p.selectBody(e.Select)
		p.write(")")
	case nil:
		p.write("NULL")
	}
}
