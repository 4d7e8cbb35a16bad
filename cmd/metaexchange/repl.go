package main

import (
	"github.com/spf13/cobra"

	"github.com/uhyunpark/metaexchange/pkg/repl"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

func newREPLCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive console (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, f)
		},
	}
}

func runREPL(cmd *cobra.Command, f *rootFlags) error {
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

	return repl.New(s.ex, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
}
