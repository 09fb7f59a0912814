package main

import (
	"context"
	"fmt"

	"github.com/norjs/nopg/pkg/nopg"
	"github.com/spf13/cobra"
)

// countCmd counts documents of a type.
func countCmd() *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "count <type> [spec.json]",
		Short: "Count documents of a type",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := readSpec(args, 1)
			if err != nil {
				return err
			}

			client, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			n, err := client.Count(context.Background(), args[0], spec, nopg.Traits{Match: match})
			if err != nil {
				return err
			}

			fmt.Println(n)
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", nopg.MatchAll, `Combine top-level filter keys with "all" or "any"`)

	return cmd
}
