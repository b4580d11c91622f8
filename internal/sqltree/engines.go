package sqltree

// TableEngine is a table storage engine.
type TableEngine uint8

// TableEngine values.
const (
	EngineMergeTree TableEngine = iota
	EngineReplacingMergeTree
	EngineSummingMergeTree
	EngineAggregatingMergeTree
	EngineCollapsingMergeTree
	EngineVersionedCollapsingMergeTree
	EngineMemory
	EngineLog
	EngineTinyLog
	EngineStripeLog
	EngineFile
	EngineNull
	EngineSet
	EngineJoin
)

var tableEngineNames = [...]string{
	EngineMergeTree:                   "MergeTree",
	EngineReplacingMergeTree:          "ReplacingMergeTree",
	EngineSummingMergeTree:            "SummingMergeTree",
	EngineAggregatingMergeTree:        "AggregatingMergeTree",
	EngineCollapsingMergeTree:         "CollapsingMergeTree",
	EngineVersionedCollapsingMergeTree: "VersionedCollapsingMergeTree",
	EngineMemory:                      "Memory",
	EngineLog:                         "Log",
	EngineTinyLog:                     "TinyLog",
	EngineStripeLog:                   "StripeLog",
	EngineFile:                        "File",
	EngineNull:                        "Null",
	EngineSet:                         "Set",
	EngineJoin:                        "Join",
}

// TableEngines lists every table engine in declaration order.
var TableEngines = []TableEngine{
	EngineMergeTree, EngineReplacingMergeTree, EngineSummingMergeTree,
	EngineAggregatingMergeTree, EngineCollapsingMergeTree,
	EngineVersionedCollapsingMergeTree, EngineMemory, EngineLog, EngineTinyLog,
	EngineStripeLog, EngineFile, EngineNull, EngineSet, EngineJoin,
}

func (e TableEngine) String() string {
	if int(e) < len(tableEngineNames) {
		return tableEngineNames[e]
	}
	return "Unknown"
}

// IsMergeTree reports whether the engine belongs to the MergeTree family.
// Only these engines support partitions, projections, statistics, TTL and
// column settings.
func (e TableEngine) IsMergeTree() bool {
	return e <= EngineVersionedCollapsingMergeTree
}

// IsFile reports whether the engine is File.
func (e TableEngine) IsFile() bool {
	return e == EngineFile
}

// SupportsFinal reports whether SELECT ... FINAL is accepted.
func (e TableEngine) SupportsFinal() bool {
	return e >= EngineReplacingMergeTree && e <= EngineVersionedCollapsingMergeTree
}

// DatabaseEngine is a database engine.
type DatabaseEngine uint8

// DatabaseEngine values.
const (
	DatabaseAtomic DatabaseEngine = iota
	DatabaseMemory
	DatabaseReplicated
	DatabaseShared
	DatabaseBackup
)

func (e DatabaseEngine) String() string {
	switch e {
	case DatabaseAtomic:
		return "Atomic"
	case DatabaseMemory:
		return "Memory"
	case DatabaseReplicated:
		return "Replicated"
	case DatabaseShared:
		return "Shared"
	case DatabaseBackup:
		return "Backup"
	}
	return "Unknown"
}

// AttachStatus is the lifecycle state of a detachable object. Values are
// ordered: Attached < Detached < PermDetached.
type AttachStatus uint8

// AttachStatus values.
const (
	Attached AttachStatus = iota
	Detached
	PermDetached
)

func (s AttachStatus) String() string {
	switch s {
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	case PermDetached:
		return "permanently detached"
	}
	return "unknown"
}

// PeerKind names the engine holding a peer copy of a table.
type PeerKind uint8

// PeerKind values.
const (
	PeerNone PeerKind = iota
	PeerClickHouse
	PeerMySQL
	PeerPostgreSQL
	PeerSQLite
)

func (p PeerKind) String() string {
	switch p {
	case PeerNone:
		return "none"
	case PeerClickHouse:
		return "clickhouse"
	case PeerMySQL:
		return "mysql"
	case PeerPostgreSQL:
		return "postgres"
	case PeerSQLite:
		return "sqlite"
	}
	return "unknown"
}

// ParsePeerKind returns the peer kind named by String.
func ParsePeerKind(name string) (PeerKind, bool) {
	for p := PeerClickHouse; p <= PeerSQLite; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return PeerNone, false
}

// DefaultKind is the default-value modifier of a column.
type DefaultKind uint8

// DefaultKind values.
const (
	DefaultNone DefaultKind = iota
	DefaultValue
	DefaultMaterialized
	DefaultAlias
	DefaultEphemeral
)

func (d DefaultKind) String() string {
	switch d {
	case DefaultValue:
		return "DEFAULT"
	case DefaultMaterialized:
		return "MATERIALIZED"
	case DefaultAlias:
		return "ALIAS"
	case DefaultEphemeral:
		return "EPHEMERAL"
	}
	return ""
}

// Insertable reports whether a column with this modifier accepts values in
// INSERT.
func (d DefaultKind) Insertable() bool {
	return d != DefaultMaterialized && d != DefaultAlias
}

// ColumnProperty is a property removable with ALTER ... REMOVE. Properties
// ordered before PropertyCodec are default modifiers.
type ColumnProperty uint8

// ColumnProperty values.
const (
	PropertyDefault ColumnProperty = iota
	PropertyMaterialized
	PropertyAlias
	PropertyEphemeral
	PropertyCodec
	PropertyComment
	PropertyTTL
	PropertySettings
)

func (p ColumnProperty) String() string {
	switch p {
	case PropertyDefault:
		return "DEFAULT"
	case PropertyMaterialized:
		return "MATERIALIZED"
	case PropertyAlias:
		return "ALIAS"
	case PropertyEphemeral:
		return "EPHEMERAL"
	case PropertyCodec:
		return "CODEC"
	case PropertyComment:
		return "COMMENT"
	case PropertyTTL:
		return "TTL"
	case PropertySettings:
		return "SETTINGS"
	}
	return ""
}

// IsDefaultModifier reports whether removing the property clears the
// column's default modifier.
func (p ColumnProperty) IsDefaultModifier() bool {
	return p < PropertyCodec
}
