package sqltree

// AlterItem is one sub-operation of ALTER TABLE.
type AlterItem interface {
	alterItem()
}

// Assignment is column = expr in UPDATE.
type Assignment struct {
	Column ColumnPath
	Expr   Expr
}

// ModifyOrderBy is MODIFY ORDER BY.
type ModifyOrderBy struct {
	Exprs []Expr
}

// HeavyDelete is DELETE [IN PARTITION] WHERE.
type HeavyDelete struct {
	Partition *PartitionExpr
	Where     Expr
}

// HeavyUpdate is UPDATE ... [IN PARTITION] WHERE.
type HeavyUpdate struct {
	Assignments []Assignment
	Partition   *PartitionExpr
	Where       Expr
}

// AddColumn is ADD COLUMN [FIRST | AFTER c].
type AddColumn struct {
	Column ColumnDef
	First  bool
	After  *ColumnPath
}

// MaterializeColumn is MATERIALIZE COLUMN [IN PARTITION].
type MaterializeColumn struct {
	Column    ColumnPath
	Partition *PartitionExpr
}

// DropColumn is DROP COLUMN.
type DropColumn struct {
	Column ColumnPath
}

// RenameColumn is RENAME COLUMN a TO b.
type RenameColumn struct {
	Old ColumnPath
	New ColumnPath
}

// ClearColumn is CLEAR COLUMN [IN PARTITION].
type ClearColumn struct {
	Column    ColumnPath
	Partition *PartitionExpr
}

// ModifyColumn is MODIFY COLUMN [FIRST | AFTER c].
type ModifyColumn struct {
	Column ColumnDef
	First  bool
	After  *ColumnPath
}

// CommentColumn is COMMENT COLUMN.
type CommentColumn struct {
	Column  ColumnPath
	Comment string
}

// ApplyDeletedMask is APPLY DELETED MASK [IN PARTITION].
type ApplyDeletedMask struct {
	Partition *PartitionExpr
}

// StatisticsAction selects a statistics sub-operation.
type StatisticsAction uint8

// StatisticsAction values.
const (
	StatisticsAdd StatisticsAction = iota
	StatisticsModify
	StatisticsDrop
	StatisticsClear
	StatisticsMaterialize
)

// Statistics is ADD/MODIFY/DROP/CLEAR/MATERIALIZE STATISTICS.
type Statistics struct {
	Action  StatisticsAction
	Columns []ColumnPath
	Types   []string
}

// AddIndex is ADD INDEX.
type AddIndex struct {
	Index IndexDef
	First bool
}

// IndexAction selects an index sub-operation.
type IndexAction uint8

// IndexAction values.
const (
	IndexMaterialize IndexAction = iota
	IndexClear
	IndexDrop
)

// IndexOp is MATERIALIZE/CLEAR/DROP INDEX.
type IndexOp struct {
	Action    IndexAction
	Index     uint32
	Partition *PartitionExpr
}

// RemoveColumnProperty is MODIFY COLUMN c REMOVE property.
type RemoveColumnProperty struct {
	Column   ColumnPath
	Property ColumnProperty
}

// ModifyColumnSetting is MODIFY COLUMN c MODIFY SETTING.
type ModifyColumnSetting struct {
	Column   ColumnPath
	Settings []SettingValue
}

// RemoveColumnSetting is MODIFY COLUMN c RESET SETTING.
type RemoveColumnSetting struct {
	Column ColumnPath
	Names  []string
}

// ModifyTableSetting is MODIFY SETTING.
type ModifyTableSetting struct {
	Settings []SettingValue
}

// RemoveTableSetting is RESET SETTING.
type RemoveTableSetting struct {
	Names []string
}

// AddProjection is ADD PROJECTION.
type AddProjection struct {
	Projection ProjectionDef
}

// ProjectionAction selects a projection sub-operation.
type ProjectionAction uint8

// ProjectionAction values.
const (
	ProjectionRemove ProjectionAction = iota
	ProjectionMaterialize
	ProjectionClear
)

// ProjectionOp is DROP/MATERIALIZE/CLEAR PROJECTION.
type ProjectionOp struct {
	Action     ProjectionAction
	Projection uint32
	Partition  *PartitionExpr
}

// AddConstraint is ADD CONSTRAINT.
type AddConstraint struct {
	Constraint ConstraintDef
}

// RemoveConstraint is DROP CONSTRAINT.
type RemoveConstraint struct {
	Constraint uint32
}

// PartitionAction selects a partition sub-operation.
type PartitionAction uint8

// PartitionAction values.
const (
	PartitionDetach PartitionAction = iota
	PartitionDrop
	PartitionDropDetached
	PartitionForget
	PartitionAttach
)

// PartitionOp is DETACH/DROP/DROP DETACHED/FORGET/ATTACH PARTITION.
type PartitionOp struct {
	Action    PartitionAction
	Partition PartitionExpr
}

// MovePartitionTo is MOVE PARTITION p TO TABLE t.
type MovePartitionTo struct {
	Partition PartitionExpr
	Table     ObjectRef
}

// ClearColumnInPartition is CLEAR COLUMN c IN PARTITION p.
type ClearColumnInPartition struct {
	Partition PartitionExpr
	Column    ColumnPath
}

// FreezePartition is FREEZE [PARTITION p] WITH NAME 'f<tag>'.
type FreezePartition struct {
	Partition *PartitionExpr
	Tag       uint32
}

// UnfreezePartition is UNFREEZE [PARTITION p] WITH NAME 'f<tag>'.
type UnfreezePartition struct {
	Partition *PartitionExpr
	Tag       uint32
}

// ClearIndexInPartition is CLEAR INDEX i IN PARTITION p.
type ClearIndexInPartition struct {
	Partition PartitionExpr
	Index     uint32
}

// MovePartition is MOVE PARTITION p TO DISK|VOLUME 'name'.
type MovePartition struct {
	Partition   PartitionExpr
	Volume      bool
	Destination string
}

// ModifyTTL is MODIFY TTL.
type ModifyTTL struct {
	TTL TTLDef
}

// RemoveTTL is REMOVE TTL.
type RemoveTTL struct{}

// CommentTable is MODIFY COMMENT.
type CommentTable struct {
	Comment string
}

// ModifyRefresh is MODIFY REFRESH on a refreshable view.
type ModifyRefresh struct {
	Refresh RefreshDef
}

// ModifyQuery is MODIFY QUERY on a view.
type ModifyQuery struct {
	Select *Select
}

func (*ModifyOrderBy) alterItem()          {}
func (*HeavyDelete) alterItem()            {}
func (*HeavyUpdate) alterItem()            {}
func (*AddColumn) alterItem()              {}
func (*MaterializeColumn) alterItem()      {}
func (*DropColumn) alterItem()             {}
func (*RenameColumn) alterItem()           {}
func (*ClearColumn) alterItem()            {}
func (*ModifyColumn) alterItem()           {}
func (*CommentColumn) alterItem()          {}
func (*ApplyDeletedMask) alterItem()       {}
func (*Statistics) alterItem()             {}
func (*AddIndex) alterItem()               {}
func (*IndexOp) alterItem()                {}
func (*RemoveColumnProperty) alterItem()   {}
func (*ModifyColumnSetting) alterItem()    {}
func (*RemoveColumnSetting) alterItem()    {}
func (*ModifyTableSetting) alterItem()     {}
func (*RemoveTableSetting) alterItem()     {}
func (*AddProjection) alterItem()          {}
func (*ProjectionOp) alterItem()           {}
func (*AddConstraint) alterItem()          {}
func (*RemoveConstraint) alterItem()       {}
func (*PartitionOp) alterItem()            {}
func (*MovePartitionTo) alterItem()        {}
func (*ClearColumnInPartition) alterItem() {}
func (*FreezePartition) alterItem()        {}
func (*UnfreezePartition) alterItem()      {}
func (*ClearIndexInPartition) alterItem()  {}
func (*MovePartition) alterItem()          {}
func (*ModifyTTL) alterItem()              {}
func (*RemoveTTL) alterItem()              {}
func (*CommentTable) alterItem()           {}
func (*ModifyRefresh) alterItem()          {}
func (*ModifyQuery) alterItem()            {}
