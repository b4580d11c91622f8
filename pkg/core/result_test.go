package core

import (
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueText(t *testing.T) {
	s := "x"
	one, otherOne := int64(1), int64(1)
	onePtr := &one
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: NullText},
		{name: "bytes", in: []byte("abc"), want: "abc"},
		{name: "string", in: "abc", want: "abc"},
		{name: "int", in: int64(-3), want: "-3"},
		{name: "float", in: 1.5, want: "1.5"},
		{name: "time", in: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), want: "2024-01-02 03:04:05"},
		{name: "nil string pointer", in: (*string)(nil), want: NullText},
		{name: "string pointer", in: &s, want: "x"},
		{name: "pointer to pointer", in: &onePtr, want: "1"},
		{name: "time pointer", in: &ts, want: "2024-01-02 03:04:05"},
		{name: "big int pointer", in: big.NewInt(42), want: "42"},
		{name: "nullable array", in: []*int64{&one, nil}, want: `[1,\N]`},
		{name: "string array", in: []string{"a", "b,c"}, want: `["a","b,c"]`},
		{name: "nullable string array", in: []*string{&s, nil}, want: `["x",\N]`},
		{name: "nested array", in: [][]*int64{{&one}, {}}, want: "[[1],[]]"},
		{name: "any array", in: []any{"a", nil, int64(2)}, want: `["a",\N,2]`},
		{name: "nullable map", in: map[string]*int64{"b": &one, "a": nil}, want: `{"a":\N,"b":1}`},
		{name: "map of arrays", in: map[int32][]*int64{2: {&otherOne}, 1: nil}, want: "{1:[],2:[1]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValueText(tt.in))
		})
	}
}

func TestValueText_EqualNullableValuesRenderEqually(t *testing.T) {
	a, b := int64(7), int64(7)
	assert.Equal(t, ValueText([]*int64{&a}), ValueText([]*int64{&b}))
	assert.Equal(t, ValueText(map[string]*int64{"k": &a}), ValueText(map[string]*int64{"k": &b}))
	assert.NotEqual(t, ValueText([]*string{nil}), ValueText([]string{NullText}))
}

func TestReadResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"a", "b"}).
			AddRow(int64(1), "x").
			AddRow(int64(2), nil),
	)

	rows, err := db.Query("SELECT a, b FROM t")
	require.NoError(t, err)

	res, err := ReadResult(&Rows{Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Columns)
	assert.Equal(t, [][]string{{"1", "x"}, {"2", NullText}}, res.Rows)
	assert.Equal(t, "1\tx\n2\t\\N\n", res.Text())
	require.NoError(t, mock.ExpectationsWereMet())
}
