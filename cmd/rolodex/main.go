// Package main provides the entry point for the rolodex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/rolodex/cmd/rolodex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
