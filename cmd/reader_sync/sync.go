package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/reader-sync/internal/capacities"
	"github.com/jonathan/reader-sync/internal/config"
	"github.com/jonathan/reader-sync/internal/ledger"
	"github.com/jonathan/reader-sync/internal/reader"
	"github.com/jonathan/reader-sync/internal/sync"
)

var syncCommand = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass from the reader archive to Capacities",
	Long: `Fetches archived items updated after the reference date, skips anything
already in the ledger, and creates one Capacities weblink per item with
its highlights rendered as markdown. Per-item failures are logged and
counted; only a failure of the initial fetch aborts the run.

Configuration can be loaded from a JSON file using --config. Environment
variables (READWISE_TOKEN, CAPACITIES_TOKEN, CAPACITIES_SPACE_ID,
DATABASE_URL) fill anything the config file leaves unset.`,
	RunE: runSyncCmd,
}

var (
	syncConfigPath   string
	syncUpdatedAfter string
	syncMaxItems     int
	syncLedgerPath   string
	syncDatabaseURL  string
	syncTags         []string
	syncEnrich       bool
	syncVerbose      bool
)

func init() {
	syncCommand.Flags().StringVar(&syncConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	syncCommand.Flags().StringVar(&syncUpdatedAfter, "updated-after", "", "Only sync items updated after this date (YYYY-MM-DD)")
	syncCommand.Flags().IntVar(&syncMaxItems, "max-items", 0, "Maximum items to process this run (default 5)")
	syncCommand.Flags().StringVar(&syncLedgerPath, "ledger", "", "Path to the processed-IDs ledger file")
	syncCommand.Flags().StringVar(&syncDatabaseURL, "database-url", "", "PostgreSQL URL for the ledger (optional, defaults to DATABASE_URL env var)")
	syncCommand.Flags().StringSliceVar(&syncTags, "tag", nil, "Extra tag added to every created weblink (repeatable)")
	syncCommand.Flags().BoolVar(&syncEnrich, "enrich", false, "Fetch page metadata for items missing a title or summary")
	syncCommand.Flags().BoolVarP(&syncVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(syncCommand)
}

// loadSyncConfig merges flags over the config file over the environment.
func loadSyncConfig() (*config.Config, error) {
	cfg := config.Config{
		UpdatedAfter: syncUpdatedAfter,
		ItemsPerRun:  syncMaxItems,
		LedgerPath:   syncLedgerPath,
		DatabaseURL:  syncDatabaseURL,
		DefaultTags:  syncTags,
	}

	if syncConfigPath != "" {
		fileCfg, err := config.LoadConfig(syncConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = cfg.MergeWithDefaults(*fileCfg)
		if fileCfg.EnrichMetadata {
			syncEnrich = true
		}
		if fileCfg.Verbose {
			syncVerbose = true
		}
	}

	cfg = cfg.MergeWithDefaults(config.FromEnv())
	if cfg.ItemsPerRun == 0 {
		cfg.ItemsPerRun = config.DefaultItemsPerRun
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSyncConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reference, err := cfg.ReferenceTimestamp()
	if err != nil {
		return err
	}

	store, err := ledger.Open(ctx, cfg.LedgerPath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() { _ = store.Close() }()

	runner := sync.New(sync.Options{
		Reader: reader.NewClient(cfg.ReadwiseToken, &reader.Options{
			BaseURL: cfg.ReaderBaseURL,
			Verbose: syncVerbose,
		}),
		Sink: capacities.NewClient(cfg.CapacitiesToken, cfg.CapacitiesSpaceID, &capacities.Options{
			BaseURL: cfg.CapacitiesBaseURL,
			Verbose: syncVerbose,
		}),
		Ledger:             store,
		ReferenceTimestamp: reference,
		MaxItems:           cfg.ItemsPerRun,
		DefaultTags:        cfg.DefaultTags,
		EnrichMetadata:     syncEnrich,
		Verbose:            syncVerbose,
	})

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Sync %s completed: %d created, %d errored, %d skipped (of %d candidates)\n",
		summary.RunID, summary.Created, summary.Errored, summary.Skipped, summary.Candidates)
	return nil
}
