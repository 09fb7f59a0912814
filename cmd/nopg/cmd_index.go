package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/norjs/nopg/internal/cli"
	"github.com/norjs/nopg/pkg/nopg"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// IndexDecl is one entry of the index declarations file.
type IndexDecl struct {
	Type   string `yaml:"type"`
	Field  string `yaml:"field"`
	Unique bool   `yaml:"unique"`
	// TypeFirst prefixes the index with the discriminator column so one
	// index serves per-type lookups on a shared table. Defaults to true.
	TypeFirst *bool `yaml:"type_first"`
}

func (d IndexDecl) options() nopg.IndexOptions {
	typeFirst := true
	if d.TypeFirst != nil {
		typeFirst = *d.TypeFirst
	}
	return nopg.IndexOptions{Unique: d.Unique, TypeFirst: typeFirst}
}

// loadDeclarations reads the index declarations file: a yaml list of
// {type, field, unique} entries.
func loadDeclarations(path string) ([]IndexDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index declarations: %w", err)
	}

	var decls []IndexDecl
	if err := yaml.Unmarshal(data, &decls); err != nil {
		return nil, fmt.Errorf("failed to parse index declarations: %w", err)
	}

	for i, d := range decls {
		if d.Type == "" || d.Field == "" {
			return nil, fmt.Errorf("index declaration %d is missing type or field", i)
		}
	}
	return decls, nil
}

// indexCmd groups the index subcommands.
func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage declared expression indexes",
	}
	cmd.AddCommand(indexSyncCmd(), indexDriftCmd())
	return cmd
}

// indexSyncCmd synchronizes declared indexes with the live catalog.
func indexSyncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize declared indexes with the database",
		Long: `Synchronize the indexes declared in the declarations file with the
live catalog: missing indexes are created, indexes whose definition no
longer matches the declaration are dropped and recreated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := syncDeclarations(client, cfg.IndexesFile); err != nil {
				if !watch {
					return err
				}
				printError(err)
			}

			if watch {
				return watchDeclarations(client, cfg.IndexesFile)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Re-synchronize when the declarations file changes")

	return cmd
}

// syncDeclarations runs one synchronization pass over the declarations file.
func syncDeclarations(client *nopg.Client, path string) error {
	decls, err := loadDeclarations(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	list := cli.NewList()
	for _, d := range decls {
		if err := client.DeclareIndexes(ctx, d.Type, []string{d.Field}, d.options()); err != nil {
			list.AddError(fmt.Sprintf("%s %s", d.Type, d.Field))
			fmt.Print(list.String())
			return err
		}
		list.AddSuccess(fmt.Sprintf("%s %s", d.Type, d.Field))
	}

	fmt.Print(list.String())
	fmt.Print(cli.FormatSuccess(fmt.Sprintf("synchronized %s", cli.FormatCount(len(decls), "index", "indexes"))))
	return nil
}

// watchDeclarations re-synchronizes whenever the declarations file changes.
// It watches the containing directory because editors replace files on save.
func watchDeclarations(client *nopg.Client, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Print(cli.FormatNote(fmt.Sprintf("watching %s", path)))

	base := filepath.Base(path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := syncDeclarations(client, path); err != nil {
				printError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printError(err)
		}
	}
}

// indexDriftCmd compares declared indexes against the live catalog.
func indexDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare declared indexes against the live catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			decls, err := loadDeclarations(cfg.IndexesFile)
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := context.Background()
			clean := true
			for _, d := range decls {
				drift, err := client.IndexDrift(ctx, d.Type, []string{d.Field}, d.options())
				if err != nil {
					return err
				}
				if !drift.HasDifferences() {
					continue
				}
				clean = false

				list := cli.NewList()
				for _, name := range drift.Missing {
					list.AddError(fmt.Sprintf("%s missing", name))
				}
				for _, name := range drift.Modified {
					list.AddWarning(fmt.Sprintf("%s modified", name))
				}
				fmt.Print(cli.Section(fmt.Sprintf("%s %s", d.Type, d.Field), list.String()))
			}

			if clean {
				fmt.Print(cli.FormatSuccess("all declared indexes match the catalog"))
				return nil
			}

			fmt.Print(cli.FormatHelp("run 'nopg index sync' to reconcile"))
			os.Exit(1)
			return nil
		},
	}

	return cmd
}
