// Package main provides the entry point for the reader-sync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reader_sync",
	Short: "Sync archived reader items into a Capacities space",
	Long:  "reader_sync copies archived items and their highlights from Readwise Reader into Capacities weblinks, creating each record at most once across runs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
