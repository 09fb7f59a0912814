// Package main provides the CLI for the nopg document store.
// nopg stores schema-flexible JSON documents in PostgreSQL JSONB columns
// and keeps declared expression indexes in sync with the live catalog.
//
// Usage:
//
//	nopg query <type> [spec.json]    # Search documents of a type
//	nopg count <type> [spec.json]    # Count documents of a type
//	nopg insert <type> <data.json>   # Insert a document
//	nopg index sync [--watch]        # Synchronize declared indexes
//	nopg index drift                 # Compare declared indexes to catalog
//	nopg version                     # Show version information
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	databaseURL string
	configFile  string
	indexesFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nopg",
		Short:         "Schema-flexible document store on PostgreSQL JSONB",
		Long:          `nopg stores JSON documents in PostgreSQL JSONB columns, compiles filter specifications to SQL predicates, and keeps declared expression indexes synchronized with the live catalog.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	registerGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		queryCmd(),
		countCmd(),
		insertCmd(),
		indexCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// registerGlobalFlags binds the connection and config flags shared by every
// subcommand.
func registerGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&databaseURL, "database-url", "d", "", "Database connection URL")
	fs.StringVarP(&configFile, "config", "c", "nopg.yaml", "Path to config file")
	fs.StringVar(&indexesFile, "indexes", "", "Path to index declarations file")
}

// versionCmd prints the build version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nopg %s\n", version)
		},
	}
}
