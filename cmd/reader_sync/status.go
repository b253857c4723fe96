package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jonathan/reader-sync/internal/ledger"
)

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Show the processed-item ledger",
	Long:  "Prints how many items have been synced and, with --list, every processed identifier.",
	RunE:  runStatusCmd,
}

var (
	statusLedgerPath  string
	statusDatabaseURL string
	statusList        bool
)

func init() {
	statusCommand.Flags().StringVar(&statusLedgerPath, "ledger", "", "Path to the processed-IDs ledger file")
	statusCommand.Flags().StringVar(&statusDatabaseURL, "database-url", "", "PostgreSQL URL for the ledger (optional, defaults to DATABASE_URL env var)")
	statusCommand.Flags().BoolVar(&statusList, "list", false, "List every processed item ID")

	rootCmd.AddCommand(statusCommand)
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	databaseURL := statusDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}

	store, err := ledger.Open(ctx, statusLedgerPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = store.Close() }()

	ids := store.IDs()
	fmt.Printf("%d items in ledger\n", len(ids))

	if statusList {
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)
		for _, id := range sorted {
			fmt.Println(id)
		}
	}
	return nil
}
