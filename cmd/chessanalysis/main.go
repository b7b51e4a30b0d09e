// Package main provides the chessanalysis CLI for analyzing games,
// evaluating positions, serving the HTTP API and managing the evaluation
// database.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
