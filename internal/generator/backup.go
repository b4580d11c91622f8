package generator

import (
	"context"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapfuzz/internal/catalog"
	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/settings"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

var (
	archiveSuffixes = []string{"tar", "zip", "tzst", "tgz"}
	tarCompressions = []string{"gz", "bz2", "lzma", "zst", "xz"}
	outputFormats   = []string{"TabSeparated", "CSV", "JSONEachRow", "Pretty", "Values", "Null"}
)

func sortedKeys[V any](m map[uint32]V) []uint32 {
	return slices.Sorted(maps.Keys(m))
}

// backups returns the recorded backups in ascending number order.
func (g *Generator) backups() []*catalog.Backup {
	out := make([]*catalog.Backup, 0, len(g.cat.Backups))
	for _, n := range sortedKeys(g.cat.Backups) {
		out = append(out, g.cat.Backups[n])
	}
	return out
}

// backupsOn returns the recorded backups written to target.
func (g *Generator) backupsOn(target sqltree.BackupTarget) []*catalog.Backup {
	var out []*catalog.Backup
	for _, b := range g.backups() {
		if b.Target == target {
			out = append(out, b)
		}
	}
	return out
}

func restorable(b *catalog.Backup) bool {
	return b.All || b.AllTemporary || b.SystemTable != "" || !b.Empty()
}

// BackupOrRestore builds BACKUP, or RESTORE from a recorded backup.
func (g *Generator) BackupOrRestore(ctx context.Context) *sqltree.BackupRestore {
	var candidates []*catalog.Backup
	for _, b := range g.backups() {
		if restorable(b) {
			candidates = append(candidates, b)
		}
	}
	isBackup := len(candidates) == 0 || g.rng.NextBool()

	var br *sqltree.BackupRestore
	if isBackup {
		br = g.backup(ctx)
	} else {
		br = g.restore(random.Pick(g.rng, candidates))
	}
	if g.rng.NextSmallNumber() < 4 {
		cat := settings.Restore
		if isBackup {
			cat = settings.Backup
		}
		br.Settings = append(br.Settings, g.settings.Pick(g.rng, cat, 3)...)
	}
	if isBackup && len(g.cat.Backups) > 0 && g.rng.NextBool() {
		base := random.Pick(g.rng, g.backups())
		br.Settings = append(br.Settings, sqltree.SettingValue{
			Name:  "base_backup",
			Value: sqltree.BackupDestination(base.Target, base.Params),
		})
	}
	if g.rng.NextSmallNumber() < 4 {
		br.Settings = append(br.Settings, g.settings.Pick(g.rng, settings.Server, 3)...)
	}
	br.Async = g.rng.NextSmallNumber() < 4
	return br
}

func (g *Generator) backup(ctx context.Context) *sqltree.BackupRestore {
	br := &sqltree.BackupRestore{Command: sqltree.CommandBackup}
	object := func(ref sqltree.ObjectRef, cluster string) sqltree.BackupElement {
		br.Cluster = cluster
		return sqltree.BackupElement{Kind: sqltree.ElementObject, Object: ref}
	}
	persistent := func(t *catalog.Table) bool { return !t.Temporary }
	br.Element = choose(g.rng, []branch[sqltree.BackupElement]{
		{"table", on(g.cat.HasAttachedTable(persistent), 10), func() sqltree.BackupElement {
			t := g.cat.PickAttachedTable(g.rng, persistent)
			el := object(t.Ref(), t.Cluster)
			if t.IsMergeTree() && g.env.TableHasPartitions(ctx, false, t) && g.rng.NextSmallNumber() < 4 {
				if p := g.partitionID(ctx, t, false); p.Kind == sqltree.PartitionID {
					el.Partitions = []sqltree.PartitionExpr{p}
				}
			}
			return el
		}},
		{"system", on(len(g.cfg.SystemTables) > 0, 3), func() sqltree.BackupElement {
			return object(sqltree.SystemTable(random.Pick(g.rng, g.cfg.SystemTables)), "")
		}},
		{"view", on(g.cat.HasAttachedView(nil), 10), func() sqltree.BackupElement {
			v := g.cat.PickAttachedView(g.rng, nil)
			return object(v.Ref(), v.Cluster)
		}},
		{"dictionary", on(g.cat.HasAttachedDictionary(nil), 10), func() sqltree.BackupElement {
			d := g.cat.PickAttachedDictionary(g.rng, nil)
			return object(d.Ref(), d.Cluster)
		}},
		{"database", on(g.cat.HasAttachedDatabase(nil), 10), func() sqltree.BackupElement {
			d := g.cat.PickAttachedDatabase(g.rng, nil)
			return object(d.Ref(), d.Cluster)
		}},
		{"all_temporary", 3, func() sqltree.BackupElement {
			return sqltree.BackupElement{Kind: sqltree.ElementAllTemporary}
		}},
		{"everything", 3, func() sqltree.BackupElement {
			return sqltree.BackupElement{Kind: sqltree.ElementAll}
		}},
	})

	br.Number = g.cat.NextBackupNumber()
	s3 := g.env.HasBackupBucket() && g.cfg.S3Endpoint != ""
	weights := []uint32{
		sqltree.TargetDisk:   on(len(g.cfg.Disks) > 0, 10),
		sqltree.TargetFile:   10,
		sqltree.TargetS3:     on(s3, 10),
		sqltree.TargetMemory: 5,
		sqltree.TargetNull:   3,
	}
	br.Target = sqltree.BackupTarget(Pick(g.rng, weights))
	br.Params = g.backupParams(br.Target, br.Number)
	if g.rng.NextSmallNumber() < 4 {
		br.Format = random.Pick(g.rng, outputFormats)
	}
	return br
}

// backupParams returns the output parameters of backup number n on target.
// Archive suffixes only apply to disk, file and S3 outputs.
func (g *Generator) backupParams(target sqltree.BackupTarget, n uint32) []string {
	if target == sqltree.TargetNull {
		return nil
	}
	name := "backup" + uitoa(n)
	if target != sqltree.TargetMemory && g.rng.NextBool() {
		suffix := random.Pick(g.rng, archiveSuffixes)
		name += "." + suffix
		if suffix == "tar" && g.rng.NextBool() {
			name += "." + random.Pick(g.rng, tarCompressions)
		}
	}
	switch target {
	case sqltree.TargetDisk:
		return []string{random.Pick(g.rng, g.cfg.Disks), name}
	case sqltree.TargetFile:
		return []string{path.Join(g.cfg.BackupPath, name)}
	case sqltree.TargetS3:
		params := []string{strings.TrimSuffix(g.cfg.S3Endpoint, "/") + "/" + path.Join(g.cfg.BackupPath, name)}
		if g.cfg.S3AccessKey != "" {
			params = append(params, g.cfg.S3AccessKey, g.cfg.S3SecretKey)
		}
		return params
	}
	return []string{name}
}

// restore mirrors the element of b: a whole-server backup restores
// everything, otherwise one recorded object is restored.
func (g *Generator) restore(b *catalog.Backup) *sqltree.BackupRestore {
	br := &sqltree.BackupRestore{
		Command: sqltree.CommandRestore,
		Number:  b.Number,
		Target:  b.Target,
		Params:  slices.Clone(b.Params),
		Format:  b.Format,
	}
	object := func(ref sqltree.ObjectRef, cluster string) sqltree.BackupElement {
		br.Cluster = cluster
		return sqltree.BackupElement{Kind: sqltree.ElementObject, Object: ref}
	}
	switch {
	case b.AllTemporary:
		br.Element = sqltree.BackupElement{Kind: sqltree.ElementAllTemporary}
		return br
	case b.All:
		br.Element = sqltree.BackupElement{Kind: sqltree.ElementAll}
		return br
	}
	br.Element = choose(g.rng, []branch[sqltree.BackupElement]{
		{"table", on(len(b.Tables) > 0, 10), func() sqltree.BackupElement {
			t := b.Tables[random.Pick(g.rng, sortedKeys(b.Tables))]
			el := object(t.Ref(), t.Cluster)
			if b.Partition != "" && g.rng.NextSmallNumber() < 4 {
				el.Partitions = []sqltree.PartitionExpr{{Kind: sqltree.PartitionID, Value: b.Partition}}
			}
			return el
		}},
		{"system", on(b.SystemTable != "", 3), func() sqltree.BackupElement {
			return object(sqltree.SystemTable(b.SystemTable), "")
		}},
		{"view", on(len(b.Views) > 0, 10), func() sqltree.BackupElement {
			v := b.Views[random.Pick(g.rng, sortedKeys(b.Views))]
			return object(v.Ref(), v.Cluster)
		}},
		{"dictionary", on(len(b.Dictionaries) > 0, 10), func() sqltree.BackupElement {
			d := b.Dictionaries[random.Pick(g.rng, sortedKeys(b.Dictionaries))]
			return object(d.Ref(), d.Cluster)
		}},
		{"database", on(len(b.Databases) > 0, 10), func() sqltree.BackupElement {
			d := b.Databases[random.Pick(g.rng, sortedKeys(b.Databases))]
			return object(d.Ref(), d.Cluster)
		}},
	})
	return br
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
