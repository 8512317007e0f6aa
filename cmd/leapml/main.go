// Package main provides the CLI for the LeapML data quality and training engine.
package main

import (
	"os"

	"github.com/leapstack-labs/leapml/internal/cli"

	// Dataset readers register themselves in init.
	_ "github.com/leapstack-labs/leapml/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapml/pkg/adapters/native"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
