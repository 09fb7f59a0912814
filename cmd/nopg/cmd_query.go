package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/norjs/nopg/pkg/nopg"
	"github.com/spf13/cobra"
)

// readSpec reads a filter specification from a JSON file, or from stdin
// when the path is "-". A missing argument means no filter.
func readSpec(args []string, pos int) (any, error) {
	if len(args) <= pos {
		return nil, nil
	}

	var data []byte
	var err error
	if args[pos] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[pos])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read filter spec: %w", err)
	}

	var spec any
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse filter spec: %w", err)
	}
	return spec, nil
}

// searchTraits builds query traits from the flag values. Unset paging flags
// stay out of the traits entirely so the compiled statement carries no
// superfluous LIMIT/OFFSET clause.
func searchTraits(fields, order []string, limit string, offset int, offsetSet bool, match string, typeAware bool) nopg.Traits {
	traits := nopg.Traits{
		Fields:    fields,
		Order:     order,
		Match:     match,
		TypeAware: typeAware,
	}
	if limit != "" {
		traits.Limit = limit
	}
	if offsetSet {
		traits.Offset = offset
	}
	return traits
}

// queryCmd searches documents of a type.
func queryCmd() *cobra.Command {
	var (
		fields    []string
		order     []string
		limit     string
		offset    int
		match     string
		typeAware bool
	)

	cmd := &cobra.Command{
		Use:   "query <type> [spec.json]",
		Short: "Search documents of a type",
		Long: `Search documents of a type, optionally filtered by a JSON
filter specification read from a file (or stdin with "-").`,
		Args: cobra.RangeArgs(1, 2),
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

			traits := searchTraits(fields, order, limit, offset, cmd.Flags().Changed("offset"), match, typeAware)

			docs, err := client.Search(context.Background(), args[0], spec, traits)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", nil, `Fields to return (default "$*")`)
	cmd.Flags().StringSliceVar(&order, "order", nil, `Order keys, "-" prefix for descending (default "$created")`)
	cmd.Flags().StringVar(&limit, "limit", "", `Maximum rows, or "ALL"`)
	cmd.Flags().IntVar(&offset, "offset", 0, "Rows to skip")
	cmd.Flags().StringVar(&match, "match", nopg.MatchAll, `Combine top-level filter keys with "all" or "any"`)
	cmd.Flags().BoolVar(&typeAware, "type-aware", false, "Apply declared type casts from the type schema")

	return cmd
}
