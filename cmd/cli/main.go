// Package main is the entry point for the docplain CLI.
// The CLI is the operator tool for interacting with the docplain API.
package main

import (
	"os"

	"docplain/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
