package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/metaexchange/pkg/api"
	"github.com/uhyunpark/metaexchange/pkg/app/core/orderbook"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

// newTradeCmd builds the one-shot buy or sell command
func newTradeCmd(f *rootFlags, verb string) *cobra.Command {
	side, _ := orderbook.ParseSide(verb)
	return &cobra.Command{
		Use:   verb + " <quantity>",
		Short: fmt.Sprintf("Allocate one %s and print the result as JSON", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[0], err)
			}

			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := util.NewQuietLogger(cfg.Log.File, cfg.Log.Level)
			if err != nil {
				return err
			}
			s, err := openSession(cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.ex.Allocate(side, qty)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewAllocationResponse(res))
		},
	}
}
