package mysql

import (
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/leapfuzz/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name   string
		config adapter.Config
		verify func(t *testing.T, c *driver.Config)
	}{
		{
			name:   "defaults",
			config: adapter.Config{Database: "fuzz"},
			verify: func(t *testing.T, c *driver.Config) {
				assert.Equal(t, "localhost:3306", c.Addr)
				assert.Equal(t, "fuzz", c.DBName)
				assert.True(t, c.ParseTime)
			},
		},
		{
			name: "credentials and options",
			config: adapter.Config{
				Host:     "mysql",
				Port:     3307,
				Database: "peers",
				Username: "root",
				Password: "secret",
				Options:  map[string]string{"wait_timeout": "600", "server_address": "ignored:1"},
			},
			verify: func(t *testing.T, c *driver.Config) {
				assert.Equal(t, "mysql:3307", c.Addr)
				assert.Equal(t, "root", c.User)
				assert.Equal(t, "secret", c.Passwd)
				assert.Equal(t, "600", c.Params["wait_timeout"])
				assert.NotContains(t, c.Params, "server_address")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := driver.ParseDSN(buildDSN(tt.config))
			require.NoError(t, err)
			tt.verify(t, c)
		})
	}
}

func TestPeerStatements(t *testing.T) {
	a := New(nil)
	a.Cfg = adapter.Config{Host: "127.0.0.1", Database: "fuzz", Username: "u", Password: "p",
		Options: map[string]string{"server_address": "mysql:3306"}}

	name, args := a.TableFunction("t1")
	assert.Equal(t, "mysql", name)
	assert.Equal(t, []string{"mysql:3306", "fuzz", "t1", "u", "p"}, args)

	typ, ok := a.ColumnType("Nullable(UInt32)")
	assert.True(t, ok)
	assert.Equal(t, "INT UNSIGNED", typ)
	_, ok = a.ColumnType("IPv6")
	assert.False(t, ok)

	assert.Equal(t, "CREATE TABLE `t1` (`c0` INT) ENGINE = InnoDB", a.CreateTableSQL("t1", []string{"`c0` INT"}))
	assert.Equal(t, "TRUNCATE TABLE `t1`", a.TruncateSQL("t1"))
	assert.Empty(t, a.OptimizeSQL("t1"))
}
