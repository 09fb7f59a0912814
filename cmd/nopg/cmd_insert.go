package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/norjs/nopg/internal/cli"
	"github.com/spf13/cobra"
)

// insertCmd inserts a document read from a JSON file.
func insertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insert <type> <data.json>",
		Short: "Insert a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read document data: %w", err)
			}

			var content map[string]any
			if err := json.Unmarshal(data, &content); err != nil {
				return fmt.Errorf("failed to parse document data: %w", err)
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			doc, err := client.Insert(context.Background(), args[0], content)
			if err != nil {
				return err
			}

			fmt.Print(cli.FormatSuccess(fmt.Sprintf("inserted %s document %s", args[0], doc.ID())))

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}

	return cmd
}
