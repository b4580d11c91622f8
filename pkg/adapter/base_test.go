package adapter

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapfuzz/pkg/core"
)

// mockBase returns a connected BaseSQLAdapter over sqlmock.
func mockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	base := NewBase(nil)
	base.DB = db
	return &base, mock
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	base := NewBase(nil)

	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close(), "closing an unopened adapter")
	assert.ErrorContains(t, base.Exec(context.Background(), "SELECT 1"), "not established")
	rows, err := base.Query(context.Background(), "SELECT 1")
	assert.Nil(t, rows)
	assert.ErrorContains(t, err, "not established")
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		fail   bool
		errMsg string
	}{
		{name: "create table", sql: "CREATE TABLE d0.t1 (c0 Int32) ENGINE = Memory"},
		{name: "insert", sql: "INSERT INTO TABLE t1 (c0) VALUES (1)"},
		{name: "server error", sql: "ALTER TABLE t1 DROP COLUMN c9", fail: true, errMsg: "failed to execute SQL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := mockBase(t)
			exp := mock.ExpectExec(regexp.QuoteMeta(tt.sql))
			if tt.fail {
				exp.WillReturnError(assert.AnError)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 0))
			}

			err := base.Exec(context.Background(), tt.sql)
			if tt.fail {
				assert.ErrorContains(t, err, tt.errMsg)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		base, mock := mockBase(t)
		mock.ExpectQuery("SELECT c0, c1 FROM t1").
			WillReturnRows(sqlmock.NewRows([]string{"c0", "c1"}).AddRow(1, "a").AddRow(2, nil))

		rows, err := base.Query(context.Background(), "SELECT c0, c1 FROM t1")
		require.NoError(t, err)
		res, err := core.ReadResult(rows)
		require.NoError(t, err)
		assert.Equal(t, []string{"c0", "c1"}, res.Columns)
		assert.Equal(t, [][]string{{"1", "a"}, {"2", core.NullText}}, res.Rows)
	})

	t.Run("error", func(t *testing.T) {
		base, mock := mockBase(t)
		mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

		rows, err := base.Query(context.Background(), "SELECT count() FROM t1")
		assert.Nil(t, rows)
		assert.ErrorContains(t, err, "failed to execute query")
	})
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	base := NewBase(nil)
	base.DB = db
	require.True(t, base.IsConnected())
	assert.NoError(t, base.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Attach(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	base := NewBase(nil)
	require.NoError(t, base.Attach(context.Background(), db, Config{Type: "mock"}))
	assert.True(t, base.IsConnected())
	assert.Equal(t, "mock", base.Cfg.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_AttachPingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(assert.AnError)
	mock.ExpectClose()

	base := NewBase(nil)
	err = base.Attach(context.Background(), db, Config{Type: "mock"})
	require.ErrorContains(t, err, "failed to ping mock")
	assert.False(t, base.IsConnected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeParams(t *testing.T) {
	type params struct {
		Settings    map[string]string `mapstructure:"settings"`
		DialTimeout time.Duration     `mapstructure:"dial_timeout"`
		Secure      bool              `mapstructure:"secure"`
	}

	tests := []struct {
		name    string
		in      map[string]any
		want    params
		wantErr bool
	}{
		{name: "empty", in: nil},
		{
			name: "all fields",
			in: map[string]any{
				"settings":     map[string]any{"max_threads": 4},
				"dial_timeout": "3s",
				"secure":       "true",
			},
			want: params{Settings: map[string]string{"max_threads": "4"}, DialTimeout: 3 * time.Second, Secure: true},
		},
		{name: "unknown key", in: map[string]any{"nope": 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got params
			err := DecodeParams(tt.in, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
