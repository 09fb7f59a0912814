package main

import (
	"fmt"
	"os"

	"github.com/norjs/nopg/pkg/nopg"
	"gopkg.in/yaml.v3"
)

// Config represents the nopg.yaml configuration file.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	IndexesFile string `yaml:"indexes_file"`
	SchemaName  string `yaml:"schema_name"`
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig() (*Config, error) {
	cfg := &Config{
		IndexesFile: "./indexes.yaml",
	}

	// Load config file if it exists
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		// Handle env var interpolation in database_url
		cfg.DatabaseURL = expandEnvVars(cfg.DatabaseURL)
	}

	// Override with env vars
	if envURL := os.Getenv("DATABASE_URL"); envURL != "" && databaseURL == "" {
		cfg.DatabaseURL = envURL
	}
	if envIndexes := os.Getenv("NOPG_INDEXES_FILE"); envIndexes != "" && indexesFile == "" {
		cfg.IndexesFile = envIndexes
	}

	// Override with CLI flags (highest priority)
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if indexesFile != "" {
		cfg.IndexesFile = indexesFile
	}

	return cfg, nil
}

// expandEnvVars expands ${VAR} patterns in a string.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

// newClient creates a nopg client from config.
func newClient() (*nopg.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := []nopg.Option{
		nopg.WithDatabaseURL(cfg.DatabaseURL),
	}
	if cfg.SchemaName != "" {
		opts = append(opts, nopg.WithSchemaName(cfg.SchemaName))
	}

	return nopg.New(opts...)
}
