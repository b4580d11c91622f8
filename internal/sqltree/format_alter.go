package sqltree

import "strings"

func (p *printer) placement(first bool, after *ColumnPath) {
	switch {
	case first:
		p.write(" FIRST")
	case after != nil:
		p.write(" AFTER ", after.String())
	}
}

func (p *printer) alterItem(item AlterItem) {
	switch it := item.(type) {
	case *ModifyOrderBy:
		p.write("MODIFY ORDER BY ")
		p.keyList(it.Exprs)
	case *HeavyDelete:
		p.write("DELETE")
		p.inPartition(it.Partition)
		p.write(" WHERE ")
		p.expr(it.Where)
	case *HeavyUpdate:
		p.write("UPDATE ")
		p.formatList(len(it.Assignments), func(i int) {
			p.write(it.Assignments[i].Column.String(), " = ")
			p.expr(it.Assignments[i].Expr)
		}, ", ")
		p.inPartition(it.Partition)
		p.write(" WHERE ")
		p.expr(it.Where)
	case *AddColumn:
		p.write("ADD COLUMN ")
		p.columnDef(&it.Column)
		p.placement(it.First, it.After)
	case *MaterializeColumn:
		p.write("MATERIALIZE COLUMN ", it.Column.String())
		p.inPartition(it.Partition)
	case *DropColumn:
		p.write("DROP COLUMN ", it.Column.String())
	case *RenameColumn:
		p.write("RENAME COLUMN ", it.Old.String(), " TO ", it.New.String())
	case *ClearColumn:
		p.write("CLEAR COLUMN ", it.Column.String())
		p.inPartition(it.Partition)
	case *ModifyColumn:
		p.write("MODIFY COLUMN ")
		p.columnDef(&it.Column)
		p.placement(it.First, it.After)
	case *CommentColumn:
		p.write("COMMENT COLUMN ", it.Column.String(), " ", Quote(it.Comment))
	case *ApplyDeletedMask:
		p.write("APPLY DELETED MASK")
		p.inPartition(it.Partition)
	case *Statistics:
		p.statistics(it)
	case *AddIndex:
		p.write("ADD ")
		p.indexDef(&it.Index)
		if it.First {
			p.write(" FIRST")
		}
	case *IndexOp:
		switch it.Action {
		case IndexMaterialize:
			p.write("MATERIALIZE INDEX ", IndexName(it.Index))
			p.inPartition(it.Partition)
		case IndexClear:
			p.write("CLEAR INDEX ", IndexName(it.Index))
			p.inPartition(it.Partition)
		case IndexDrop:
			p.write("DROP INDEX ", IndexName(it.Index))
		}
	case *RemoveColumnProperty:
		p.write("MODIFY COLUMN ", it.Column.String(), " REMOVE ", it.Property.String())
	case *ModifyColumnSetting:
		p.write("MODIFY COLUMN ", it.Column.String(), " MODIFY SETTING ")
		p.settingList(it.Settings)
	case *RemoveColumnSetting:
		p.write("MODIFY COLUMN ", it.Column.String(), " RESET SETTING ", strings.Join(it.Names, ", "))
	case *ModifyTableSetting:
		p.write("MODIFY SETTING ")
		p.settingList(it.Settings)
	case *RemoveTableSetting:
		p.write("RESET SETTING ", strings.Join(it.Names, ", "))
	case *AddProjection:
		p.write("ADD ")
		p.projectionDef(&it.Projection)
	case *ProjectionOp:
		switch it.Action {
		case ProjectionRemove:
			p.write("DROP PROJECTION ", ProjectionName(it.Projection))
		case ProjectionMaterialize:
			p.write("MATERIALIZE PROJECTION ", ProjectionName(it.Projection))
			p.inPartition(it.Partition)
		case ProjectionClear:
			p.write("CLEAR PROJECTION ", ProjectionName(it.Projection))
			p.inPartition(it.Partition)
		}
	case *AddConstraint:
		p.write("ADD ")
		p.constraintDef(&it.Constraint)
	case *RemoveConstraint:
		p.write("DROP CONSTRAINT ", ConstraintName(it.Constraint))
	case *PartitionOp:
		switch it.Action {
		case PartitionDetach:
			p.write("DETACH ")
		case PartitionDrop:
			p.write("DROP ")
		case PartitionDropDetached:
			p.write("DROP DETACHED ")
		case PartitionForget:
			p.write("FORGET ")
		case PartitionAttach:
			p.write("ATTACH ")
		}
		p.partition(it.Partition)
	case *MovePartitionTo:
		p.write("MOVE ")
		p.partition(it.Partition)
		p.write(" TO TABLE ", it.Table.String())
	case *ClearColumnInPartition:
		p.write("CLEAR COLUMN ", it.Column.String(), " IN ")
		p.partition(it.Partition)
	case *FreezePartition:
		p.write("FREEZE")
		p.freezeTarget(it.Partition, it.Tag)
	case *UnfreezePartition:
		p.write("UNFREEZE")
		p.freezeTarget(it.Partition, it.Tag)
	case *ClearIndexInPartition:
		p.write("CLEAR INDEX ", IndexName(it.Index), " IN ")
		p.partition(it.Partition)
	case *MovePartition:
		p.write("MOVE ")
		p.partition(it.Partition)
		if it.Volume {
			p.write(" TO VOLUME ")
		} else {
			p.write(" TO DISK ")
		}
		p.write(Quote(it.Destination))
	case *ModifyTTL:
		p.write("MODIFY TTL ")
		p.ttl(&it.TTL)
	case *RemoveTTL:
		p.write("REMOVE TTL")
	case *CommentTable:
		p.write("MODIFY COMMENT ", Quote(it.Comment))
	case *ModifyRefresh:
		p.write("MODIFY ")
		p.refresh(&it.Refresh)
	case *ModifyQuery:
		p.write("MODIFY QUERY ")
		p.selectBody(it.Select)
	}
}

// FreezeName returns the backup name used by FREEZE ... WITH NAME.
func FreezeName(tag uint32) string {
	return "f" + uitoa(tag)
}

func (p *printer) freezeTarget(pe *PartitionExpr, tag uint32) {
	if pe != nil {
		p.space()
		p.partition(*pe)
	}
	p.write(" WITH NAME ", Quote(FreezeName(tag)))
}

func (p *printer) statistics(s *Statistics) {
	switch s.Action {
	case StatisticsAdd:
		p.write("ADD STATISTICS ")
	case StatisticsModify:
		p.write("MODIFY STATISTICS ")
	case StatisticsDrop:
		p.write("DROP STATISTICS ")
	case StatisticsClear:
		p.write("CLEAR STATISTICS ")
	case StatisticsMaterialize:
		p.write("MATERIALIZE STATISTICS ")
	}
	p.pathList(s.Columns)
	if len(s.Types) > 0 && (s.Action == StatisticsAdd || s.Action == StatisticsModify) {
		p.write(" TYPE ", strings.Join(s.Types, ", "))
	}
}
