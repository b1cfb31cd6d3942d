// Package main provides the entry point for the searchemu CLI.
package main

import (
	"os"

	"github.com/searchemu/searchemu/cmd/searchemu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
