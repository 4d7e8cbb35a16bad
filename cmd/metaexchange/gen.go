package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/metaexchange/pkg/ingest"
)

func newGenCmd() *cobra.Command {
	var (
		out   string
		books int
		depth int
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a random snapshot file for testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if books < 1 || depth < 1 {
				return fmt.Errorf("--books and --depth must be positive")
			}
			if err := ingest.NewGenerator(seed, depth).WriteFile(out, books); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d books of depth %d to %s\n", books, depth, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "order_books_data.zip", "output path; extension picks the compression")
	cmd.Flags().IntVar(&books, "books", 10, "number of books")
	cmd.Flags().IntVar(&depth, "depth", 20, "orders per side")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	return cmd
}
