// Package main provides the entry point for the corpusrank CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/corpusrank/cmd/corpusrank/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
