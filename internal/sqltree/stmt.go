package sqltree

// TxnMarker marks a statement as a transaction control statement.
type TxnMarker uint8

// TxnMarker values.
const (
	TxnNone TxnMarker = iota
	TxnStart
	TxnCommit
	TxnRollback
)

// ExplainKind selects the EXPLAIN variant.
type ExplainKind uint8

// ExplainKind values. ExplainDefault renders a bare EXPLAIN.
const (
	ExplainDefault ExplainKind = iota
	ExplainAST
	ExplainSyntax
	ExplainQueryTree
	ExplainPlan
	ExplainPipeline
	ExplainEstimate
)

func (k ExplainKind) String() string {
	switch k {
	case ExplainAST:
		return "AST"
	case ExplainSyntax:
		return "SYNTAX"
	case ExplainQueryTree:
		return "QUERY TREE"
	case ExplainPlan:
		return "PLAN"
	case ExplainPipeline:
		return "PIPELINE"
	case ExplainEstimate:
		return "ESTIMATE"
	}
	return ""
}

// ExplainOption is one name = value option of EXPLAIN.
type ExplainOption struct {
	Name  string
	Value uint32
}

// Statement is one generated top-level statement.
type Statement struct {
	Txn         TxnMarker
	Explain     bool
	ExplainKind ExplainKind
	ExplainOpts []ExplainOption
	Query       Stmt
}

// ExplainOnly reports whether the statement has no live effect.
func (s *Statement) ExplainOnly() bool {
	return s.Explain
}

// Stmt is a statement variant.
type Stmt interface {
	stmtNode()
}

// ColumnDef defines a table column.
type ColumnDef struct {
	Path        ColumnPath
	Type        Type
	Null        Nullability
	Default     DefaultKind
	DefaultExpr Expr
	Codecs      []string
	Comment     string
	Settings    []SettingValue
}

// Nullability is an explicit NULL / NOT NULL marker.
type Nullability uint8

// Nullability values.
const (
	NullUnset Nullability = iota
	NullYes
	NullNo
)

// IndexDef defines a data-skipping index.
type IndexDef struct {
	ID          uint32
	Expr        Expr
	Type        string
	Granularity uint32
}

// ProjectionDef defines a projection.
type ProjectionDef struct {
	ID     uint32
	Select *Select
}

// ConstraintDef defines a CHECK or ASSUME constraint.
type ConstraintDef struct {
	ID     uint32
	Assume bool
	Expr   Expr
}

// TTLDef is a table TTL clause.
type TTLDef struct {
	Expr   Expr
	Action string
}

// EngineDef is the ENGINE clause of a table or materialized view.
type EngineDef struct {
	Engine      TableEngine
	Args        []Expr
	OrderBy     []Expr
	PartitionBy []Expr
	PrimaryKey  []Expr
	SampleBy    Expr
	TTL         *TTLDef
	Settings    []SettingValue
}

// CreateTable is CREATE [OR REPLACE] [TEMPORARY] TABLE.
type CreateTable struct {
	Replace     bool
	Temporary   bool
	Table       ObjectRef
	Columns     []ColumnDef
	Indexes     []IndexDef
	Projections []ProjectionDef
	Constraints []ConstraintDef
	Engine      EngineDef
	Cluster     string
	Comment     string
}

// RefreshDef is the REFRESH clause of a refreshable materialized view.
type RefreshDef struct {
	Every    bool
	Interval uint32
	Unit     string
	Append   bool
}

// CreateView is CREATE [OR REPLACE] [MATERIALIZED] VIEW.
type CreateView struct {
	Replace      bool
	View         ObjectRef
	Materialized bool
	Refresh      *RefreshDef
	Columns      []ColumnPath
	To           *ObjectRef
	Engine       *EngineDef
	Populate     bool
	Empty        bool
	Cluster      string
	Select       *Select
	Comment      string
}

// DictionaryColumn is one attribute of a dictionary.
type DictionaryColumn struct {
	Path ColumnPath
	Type Type
}

// CreateDictionary is CREATE [OR REPLACE] DICTIONARY.
type CreateDictionary struct {
	Replace     bool
	Dictionary  ObjectRef
	Columns     []DictionaryColumn
	PrimaryKey  []ColumnPath
	Source      ObjectRef
	Layout      string
	LifetimeMin uint32
	LifetimeMax uint32
	Cluster     string
	Comment     string
}

// CreateDatabase is CREATE DATABASE.
type CreateDatabase struct {
	Database ObjectRef
	Engine   DatabaseEngine
	Args     []Expr
	Cluster  string
	Comment  string
}

// CreateFunction is CREATE FUNCTION f AS (params) -> body.
type CreateFunction struct {
	Function ObjectRef
	Params   []string
	Body     Expr
	Cluster  string
}

// SelectStmt is a top-level SELECT.
type SelectStmt struct {
	Select *Select
	Format string
}

// Drop is DROP <kind>.
type Drop struct {
	Object    ObjectRef
	Temporary bool
	IfExists  bool
	IfEmpty   bool
	Sync      bool
	Cluster   string
	Settings  []SettingValue
}

// Insert is INSERT INTO. Exactly one of Rows, Random and Select is set.
type Insert struct {
	Table    ObjectRef
	Function *TableFunction
	Columns  []ColumnPath
	Rows     [][]Expr
	Random   *GenerateRandom
	Select   *Select
	Settings []SettingValue
}

// GenerateRandom is a SELECT * FROM generateRandom(...) LIMIT n body.
type GenerateRandom struct {
	Structure       string
	Seed            uint64
	MaxStringLength uint32
	MaxArrayLength  uint32
	Limit           uint32
}

// LightDelete is DELETE FROM t [IN PARTITION] WHERE p.
type LightDelete struct {
	Table     ObjectRef
	Partition *PartitionExpr
	Where     Expr
	Cluster   string
	Settings  []SettingValue
}

// Truncate is TRUNCATE TABLE, TRUNCATE ALL TABLES FROM or TRUNCATE
// DATABASE.
type Truncate struct {
	Object    ObjectRef
	AllTables bool
	Cluster   string
	Settings  []SettingValue
}

// Dedup is the DEDUPLICATE clause of OPTIMIZE.
type Dedup struct {
	All     bool
	Except  []ColumnPath
	Columns []ColumnPath
}

// Optimize is OPTIMIZE TABLE.
type Optimize struct {
	Table     ObjectRef
	Partition *PartitionExpr
	Final     bool
	Cleanup   bool
	Dedup     *Dedup
	Cluster   string
	Settings  []SettingValue
}

// Check is CHECK TABLE.
type Check struct {
	Table     ObjectRef
	Partition *PartitionExpr
	Settings  []SettingValue
}

// Desc is DESCRIBE over an object, a subquery or a table function.
type Desc struct {
	Object   *ObjectRef
	Select   *Select
	Function *TableFunction
	Settings []SettingValue
}

// Exchange is EXCHANGE TABLES a AND b.
type Exchange struct {
	First    ObjectRef
	Second   ObjectRef
	Cluster  string
	Settings []SettingValue
}

// SetValues is SET name = value, ...
type SetValues struct {
	Settings []SettingValue
}

// Attach is ATTACH <kind>.
type Attach struct {
	Object   ObjectRef
	Cluster  string
	Settings []SettingValue
}

// Detach is DETACH <kind> [PERMANENTLY] [SYNC].
type Detach struct {
	Object      ObjectRef
	Permanently bool
	Sync        bool
	Cluster     string
	Settings    []SettingValue
}

// SystemCommand is SYSTEM <command> [target].
type SystemCommand struct {
	Command string
	Target  *ObjectRef
	Cluster string
}

// AlterTable is ALTER TABLE over a table or a view.
type AlterTable struct {
	Object   ObjectRef
	Items    []AlterItem
	Cluster  string
	Settings []SettingValue
}

func (*CreateTable) stmtNode()      {}
func (*CreateView) stmtNode()       {}
func (*CreateDictionary) stmtNode() {}
func (*CreateDatabase) stmtNode()   {}
func (*CreateFunction) stmtNode()   {}
func (*SelectStmt) stmtNode()       {}
func (*Drop) stmtNode()             {}
func (*Insert) stmtNode()           {}
func (*LightDelete) stmtNode()      {}
func (*Truncate) stmtNode()         {}
func (*Optimize) stmtNode()         {}
func (*Check) stmtNode()            {}
func (*Desc) stmtNode()             {}
func (*Exchange) stmtNode()         {}
func (*SetValues) stmtNode()        {}
func (*Attach) stmtNode()           {}
func (*Detach) stmtNode()           {}
func (*SystemCommand) stmtNode()    {}
func (*AlterTable) stmtNode()       {}
func (*BackupRestore) stmtNode()    {}

// PartitionKind selects how a partition is addressed.
type PartitionKind uint8

// PartitionKind values.
const (
	PartitionTuple PartitionKind = iota
	PartitionID
	PartitionPart
	PartitionAll
)

// PartitionExpr addresses a partition or a part.
type PartitionExpr struct {
	Kind  PartitionKind
	Value string
}

// BackupCommand is BACKUP or RESTORE.
type BackupCommand uint8

// BackupCommand values.
const (
	CommandBackup BackupCommand = iota
	CommandRestore
)

// BackupElementKind selects what a backup covers.
type BackupElementKind uint8

// BackupElementKind values.
const (
	ElementObject BackupElementKind = iota
	ElementAllTemporary
	ElementAll
)

// BackupElement is the subject of a BACKUP or RESTORE.
type BackupElement struct {
	Kind       BackupElementKind
	Object     ObjectRef
	Partitions []PartitionExpr
}

// BackupTarget is where a backup is written.
type BackupTarget uint8

// BackupTarget values.
const (
	TargetDisk BackupTarget = iota
	TargetFile
	TargetS3
	TargetMemory
	TargetNull
)

func (t BackupTarget) String() string {
	switch t {
	case TargetDisk:
		return "Disk"
	case TargetFile:
		return "File"
	case TargetS3:
		return "S3"
	case TargetMemory:
		return "Memory"
	case TargetNull:
		return "Null"
	}
	return ""
}

// BackupRestore is BACKUP ... TO target or RESTORE ... FROM target. Params
// are passed through as quoted strings.
type BackupRestore struct {
	Command  BackupCommand
	Number   uint32
	Element  BackupElement
	Target   BackupTarget
	Params   []string
	Cluster  string
	Async    bool
	Settings []SettingValue
	Format   string
}
