// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/reader-sync/internal/schemas"
)

// DefaultItemsPerRun caps how many items one sync pass creates.
const DefaultItemsPerRun = 5

// SchemaRelativePath locates the config JSON Schema from the repo root.
const SchemaRelativePath = "schemas/config.schema.json"

// Config is the CLI configuration. Values can come from a JSON file,
// environment variables, or flags; flags win, then file, then env.
type Config struct {
	// Credentials
	ReadwiseToken     string `json:"readwise_token,omitempty"`
	CapacitiesToken   string `json:"capacities_token,omitempty"`
	CapacitiesSpaceID string `json:"capacities_space_id,omitempty"`

	// Endpoints (overridable for testing)
	ReaderBaseURL     string `json:"reader_base_url,omitempty"`
	CapacitiesBaseURL string `json:"capacities_base_url,omitempty"`

	// Ledger backends: database_url selects Postgres, else ledger_path.
	DatabaseURL string `json:"database_url,omitempty"`
	LedgerPath  string `json:"ledger_path,omitempty"`

	// Sync behavior
	UpdatedAfter   string   `json:"updated_after,omitempty"` // YYYY-MM-DD
	ItemsPerRun    int      `json:"items_per_run,omitempty"`
	DefaultTags    []string `json:"default_tags,omitempty"`
	EnrichMetadata bool     `json:"enrich_metadata,omitempty"`
	Verbose        bool     `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file, validating it
// against the config schema when the schema file can be located.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if schemaPath := schemas.ResolveSchemaPath(SchemaRelativePath); schemaPath != "" {
		if err := schemas.ValidateDocument(schemaPath, data); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		ReadwiseToken:     os.Getenv("READWISE_TOKEN"),
		CapacitiesToken:   os.Getenv("CAPACITIES_TOKEN"),
		CapacitiesSpaceID: os.Getenv("CAPACITIES_SPACE_ID"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		LedgerPath:        os.Getenv("LEDGER_PATH"),
		UpdatedAfter:      os.Getenv("UPDATED_AFTER"),
	}
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.ReadwiseToken == "" {
		return fmt.Errorf("config error: readwise token is required (READWISE_TOKEN)")
	}
	if c.CapacitiesToken == "" {
		return fmt.Errorf("config error: capacities token is required (CAPACITIES_TOKEN)")
	}
	if c.CapacitiesSpaceID == "" {
		return fmt.Errorf("config error: capacities space id is required (CAPACITIES_SPACE_ID)")
	}
	if c.ItemsPerRun < 0 {
		return fmt.Errorf("config error: 'items_per_run' must be non-negative")
	}
	if c.UpdatedAfter != "" {
		if _, err := time.Parse("2006-01-02", c.UpdatedAfter); err != nil {
			return fmt.Errorf("config error: 'updated_after' must be YYYY-MM-DD: %w", err)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults. Bool fields are not merged; flags always win for those.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.ReadwiseToken == "" {
		result.ReadwiseToken = defaults.ReadwiseToken
	}
	if result.CapacitiesToken == "" {
		result.CapacitiesToken = defaults.CapacitiesToken
	}
	if result.CapacitiesSpaceID == "" {
		result.CapacitiesSpaceID = defaults.CapacitiesSpaceID
	}
	if result.ReaderBaseURL == "" {
		result.ReaderBaseURL = defaults.ReaderBaseURL
	}
	if result.CapacitiesBaseURL == "" {
		result.CapacitiesBaseURL = defaults.CapacitiesBaseURL
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.LedgerPath == "" {
		result.LedgerPath = defaults.LedgerPath
	}
	if result.UpdatedAfter == "" {
		result.UpdatedAfter = defaults.UpdatedAfter
	}
	if result.ItemsPerRun == 0 {
		result.ItemsPerRun = defaults.ItemsPerRun
	}
	if len(result.DefaultTags) == 0 {
		result.DefaultTags = defaults.DefaultTags
	}

	return result
}

// ReferenceTimestamp converts the updated_after date into the ISO-8601
// timestamp the reader API expects (UTC midnight of that day). Returns
// the empty string when no reference date is configured.
func (c *Config) ReferenceTimestamp() (string, error) {
	if c.UpdatedAfter == "" {
		return "", nil
	}
	day, err := time.Parse("2006-01-02", c.UpdatedAfter)
	if err != nil {
		return "", fmt.Errorf("invalid reference date %q: %w", c.UpdatedAfter, err)
	}
	return day.UTC().Format(time.RFC3339), nil
}
