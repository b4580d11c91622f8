package core

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// NullText is the canonical text of SQL NULL.
const NullText = `\N`

// Result is a query result rendered as text, one string per value.
type Result struct {
	Columns []string
	Rows    [][]string
}

// ReadResult drains rows into a Result and closes them.
func ReadResult(rows *Rows) (Result, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read columns: %w", err)
	}
	res := Result{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = ValueText(v)
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("error iterating rows: %w", err)
	}
	return res, nil
}

// ValueText renders a scanned driver value as text. Pointers are followed
// and nil ones render as NullText; arrays render as [a,b], maps as {k:v}
// with keys sorted, and strings inside them are quoted.
func ValueText(v any) string {
	switch x := v.(type) {
	case nil:
		return NullText
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format("2006-01-02 15:04:05.999999999")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return NullText
		}
		// *big.Int and friends only implement Stringer on the pointer.
		s, ok := v.(fmt.Stringer)
		if elem := rv.Elem(); ok && elem.Kind() == reflect.Struct &&
			elem.Type() != timeType && !elem.Type().Implements(stringerType) {
			return s.String()
		}
		return ValueText(rv.Elem().Interface())
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var b strings.Builder
		b.WriteByte('[')
		for i := range rv.Len() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(elementText(rv.Index(i)))
		}
		b.WriteByte(']')
		return b.String()
	case reflect.Map:
		entries := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, elementText(iter.Key())+":"+elementText(iter.Value()))
		}
		slices.Sort(entries)
		return "{" + strings.Join(entries, ",") + "}"
	}
	return fmt.Sprint(v)
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	bytesType    = reflect.TypeOf([]byte(nil))
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// elementText renders a value nested in an array or map.
func elementText(v reflect.Value) string {
	if !v.CanInterface() {
		return fmt.Sprint(v)
	}
	x := v.Interface()
	u := reflect.ValueOf(x)
	for u.Kind() == reflect.Pointer && !u.IsNil() {
		u = u.Elem()
	}
	if u.Kind() == reflect.String || (u.IsValid() && u.Type() == bytesType) {
		return strconv.Quote(ValueText(x))
	}
	return ValueText(x)
}

// Text renders the rows as tab-separated lines.
func (r Result) Text() string {
	var b strings.Builder
	for _, row := range r.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
