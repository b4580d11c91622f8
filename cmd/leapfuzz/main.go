// Package main is the leapfuzz command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapfuzz/internal/cli"

	// Register the target and peer adapters
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapfuzz/pkg/adapters/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
