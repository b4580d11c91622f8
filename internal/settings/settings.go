// Package settings holds the server, table, column, backup and format
// settings the generator samples from, each with its own random value
// generator.
package settings

import (
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapfuzz/internal/random"
	"github.com/leapstack-labs/leapfuzz/internal/sqltree"
)

// Category groups settings by the statements that accept them.
type Category uint8

// Category values.
const (
	Server Category = iota
	ResultNeutral
	MergeTreeTable
	MergeTreeColumn
	Backup
	Restore
	Format
)

var categoryNames = map[Category]string{
	Server:          "server",
	ResultNeutral:   "result_neutral",
	MergeTreeTable:  "merge_tree_table",
	MergeTreeColumn: "merge_tree_column",
	Backup:          "backup",
	Restore:         "restore",
	Format:          "format",
}

func (c Category) String() string {
	return categoryNames[c]
}

// ParseCategory maps a category name back to its value.
func ParseCategory(name string) (Category, bool) {
	for c, n := range categoryNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Generator draws one rendered value for a setting.
type Generator func(rng *random.Generator) string

// Setting is one named setting and its value generator.
type Setting struct {
	Name     string
	Generate Generator
}

// Bool draws 0 or 1.
func Bool() Generator {
	return func(rng *random.Generator) string {
		if rng.NextBool() {
			return "1"
		}
		return "0"
	}
}

// Range draws an integer in [lo, hi].
func Range(lo, hi uint32) Generator {
	return func(rng *random.Generator) string {
		return strconv.FormatUint(uint64(rng.RandomInt(lo, hi)), 10)
	}
}

// Choice draws one of values, which are rendered verbatim.
func Choice(values ...string) Generator {
	return func(rng *random.Generator) string {
		return random.Pick(rng, values)
	}
}

// Strings draws one of values and quotes it.
func Strings(values ...string) Generator {
	return func(rng *random.Generator) string {
		return sqltree.Quote(random.Pick(rng, values))
	}
}

// Source is the read-only set of settings per category.
type Source struct {
	byCategory map[Category][]Setting
}

// NewSource returns a source over the given tables. Settings of each
// category are kept sorted by name.
func NewSource(tables map[Category][]Setting) *Source {
	s := &Source{byCategory: make(map[Category][]Setting, len(tables))}
	for cat, list := range tables {
		sorted := slices.Clone(list)
		slices.SortFunc(sorted, func(a, b Setting) int { return strings.Compare(a.Name, b.Name) })
		s.byCategory[cat] = sorted
	}
	return s
}

// Default returns the built-in settings.
func Default() *Source {
	return NewSource(defaults())
}

// Settings returns the settings of cat sorted by name.
func (s *Source) Settings(cat Category) []Setting {
	return s.byCategory[cat]
}

// Has reports whether cat has at least one setting.
func (s *Source) Has(cat Category) bool {
	return len(s.byCategory[cat]) > 0
}

// Lookup returns setting name in cat.
func (s *Source) Lookup(cat Category, name string) (Setting, bool) {
	list := s.byCategory[cat]
	i, ok := slices.BinarySearchFunc(list, name, func(st Setting, n string) int {
		return strings.Compare(st.Name, n)
	})
	if !ok {
		return Setting{}, false
	}
	return list[i], true
}

// Pick returns between 1 and n distinct settings of cat with random values.
func (s *Source) Pick(rng *random.Generator, cat Category, n uint32) []sqltree.SettingValue {
	list := s.byCategory[cat]
	if len(list) == 0 || n == 0 {
		return nil
	}
	count := int(rng.RandomInt(1, n))
	chosen := random.Sample(rng, list, count)
	out := make([]sqltree.SettingValue, len(chosen))
	for i, st := range chosen {
		out[i] = sqltree.SettingValue{Name: st.Name, Value: st.Generate(rng)}
	}
	return out
}

// Names returns between 1 and n distinct setting names of cat.
func (s *Source) Names(rng *random.Generator, cat Category, n uint32) []string {
	values := s.Pick(rng, cat, n)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Name
	}
	return out
}

// Vary redraws every value in first, preferring a value that differs from
// the original. Names are kept.
func (s *Source) Vary(rng *random.Generator, cat Category, first []sqltree.SettingValue) []sqltree.SettingValue {
	out := make([]sqltree.SettingValue, len(first))
	for i, v := range first {
		out[i] = v
		st, ok := s.Lookup(cat, v.Name)
		if !ok {
			continue
		}
		for attempt := 0; attempt < 8; attempt++ {
			if nv := st.Generate(rng); nv != v.Value {
				out[i].Value = nv
				break
			}
		}
	}
	return out
}

func defaults() map[Category][]Setting {
	neutral := []Setting{
		{Name: "max_threads", Generate: Range(1, 16)},
		{Name: "max_block_size", Generate: Choice("1", "8", "64", "1024", "8192", "65505")},
		{Name: "optimize_read_in_order", Generate: Bool()},
		{Name: "optimize_aggregation_in_order", Generate: Bool()},
		{Name: "join_algorithm", Generate: Strings("default", "hash", "parallel_hash", "partial_merge", "grace_hash", "full_sorting_merge", "auto")},
		{Name: "max_bytes_before_external_group_by", Generate: Choice("0", "1", "1000000", "100000000")},
		{Name: "max_bytes_before_external_sort", Generate: Choice("0", "1", "1000000", "100000000")},
		{Name: "group_by_two_level_threshold", Generate: Choice("1", "100", "100000")},
		{Name: "enable_optimize_predicate_expression", Generate: Bool()},
		{Name: "optimize_move_to_prewhere", Generate: Bool()},
		{Name: "query_plan_enable_optimizations", Generate: Bool()},
		{Name: "compile_expressions", Generate: Bool()},
		{Name: "min_count_to_compile_expression", Generate: Choice("0", "1", "3")},
		{Name: "use_uncompressed_cache", Generate: Bool()},
		{Name: "use_skip_indexes", Generate: Bool()},
		{Name: "max_final_threads", Generate: Range(1, 8)},
		{Name: "read_in_order_two_level_merge_threshold", Generate: Choice("0", "1", "100")},
	}
	server := append(slices.Clone(neutral),
		Setting{Name: "mutations_sync", Generate: Choice("0", "1", "2")},
		Setting{Name: "lightweight_deletes_sync", Generate: Choice("0", "1", "2")},
		Setting{Name: "insert_deduplicate", Generate: Bool()},
		Setting{Name: "async_insert", Generate: Bool()},
		Setting{Name: "max_insert_threads", Generate: Range(0, 8)},
		Setting{Name: "min_insert_block_size_rows", Generate: Choice("0", "1", "1024", "1048449")},
		Setting{Name: "allow_experimental_analyzer", Generate: Bool()},
		Setting{Name: "enable_filesystem_cache", Generate: Bool()},
		Setting{Name: "transform_null_in", Generate: Bool()},
		Setting{Name: "join_use_nulls", Generate: Bool()},
	)
	return map[Category][]Setting{
		Server:        server,
		ResultNeutral: neutral,
		MergeTreeTable: {
			{Name: "index_granularity", Generate: Choice("1", "64", "1024", "8192")},
			{Name: "min_bytes_for_wide_part", Generate: Choice("0", "1048576", "10485760")},
			{Name: "min_rows_for_wide_part", Generate: Choice("0", "100", "10000")},
			{Name: "merge_max_block_size", Generate: Choice("1", "1024", "8192")},
			{Name: "allow_nullable_key", Generate: Choice("1")},
			{Name: "old_parts_lifetime", Generate: Range(1, 480)},
			{Name: "ttl_only_drop_parts", Generate: Bool()},
			{Name: "add_minmax_index_for_numeric_columns", Generate: Bool()},
			{Name: "compress_marks", Generate: Bool()},
			{Name: "compress_primary_key", Generate: Bool()},
			{Name: "enable_block_number_column", Generate: Bool()},
			{Name: "enable_block_offset_column", Generate: Bool()},
		},
		MergeTreeColumn: {
			{Name: "min_compress_block_size", Generate: Choice("1024", "65536", "1048576")},
			{Name: "max_compress_block_size", Generate: Choice("1024", "65536", "1048576")},
		},
		Backup: {
			{Name: "deduplicate_files", Generate: Bool()},
			{Name: "structure_only", Generate: Bool()},
			{Name: "check_parts", Generate: Bool()},
			{Name: "compression_method", Generate: Strings("lzma", "zstd", "deflate", "xz", "bzip2")},
			{Name: "compression_level", Generate: Range(1, 9)},
			{Name: "allow_backup_broken_projections", Generate: Bool()},
		},
		Restore: {
			{Name: "allow_non_empty_tables", Generate: Bool()},
			{Name: "structure_only", Generate: Bool()},
			{Name: "allow_different_table_def", Generate: Bool()},
			{Name: "allow_different_database_def", Generate: Bool()},
			{Name: "restore_broken_parts_as_detached", Generate: Bool()},
		},
		Format: {
			{Name: "output_format_json_quote_64bit_integers", Generate: Bool()},
			{Name: "output_format_decimal_trailing_zeros", Generate: Bool()},
			{Name: "input_format_null_as_default", Generate: Bool()},
			{Name: "format_csv_delimiter", Generate: Strings(",", ";", "|")},
			{Name: "output_format_parquet_compression_method", Generate: Strings("snappy", "lz4", "zstd", "none")},
		},
	}
}
