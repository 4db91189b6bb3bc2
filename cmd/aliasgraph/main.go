// Package main is the entry point for the aliasgraph CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/aliasgraph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
