// Command metaexchange routes buy and sell volume across several venue
// snapshots at the best available prices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uhyunpark/metaexchange/params"
	"github.com/uhyunpark/metaexchange/pkg/app/core"
	"github.com/uhyunpark/metaexchange/pkg/app/core/allocation"
	"github.com/uhyunpark/metaexchange/pkg/ingest"
	"github.com/uhyunpark/metaexchange/pkg/storage"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

// rootFlags are shared by every subcommand. Flags set on the command line
// beat every other configuration source.
type rootFlags struct {
	config      string
	env         string
	source      string
	maxAccounts int
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "metaexchange",
		Short:         "Best-execution routing across exchange snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "", "TOML configuration file")
	pf.StringVar(&f.env, "env", "", ".env file (default: .env in the working directory)")
	pf.StringVar(&f.source, "source", "", "order book snapshot file (.zip, .zst, .gz or plain)")
	pf.IntVar(&f.maxAccounts, "max-accounts", 0, "number of books to load, <= 0 for all")

	root.AddCommand(
		newREPLCmd(f),
		newServeCmd(f),
		newTradeCmd(f, "buy"),
		newTradeCmd(f, "sell"),
		newGenCmd(),
	)
	return root
}

// loadConfig layers command-line flags over params.Load
func loadConfig(cmd *cobra.Command, f *rootFlags) (params.Config, error) {
	cfg, err := params.Load(f.config, f.env)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("source") {
		cfg.Ingest.SourcePath = f.source
	}
	if cmd.Flags().Changed("max-accounts") {
		cfg.Ingest.MaxAccounts = f.maxAccounts
	}
	return cfg, nil
}

// session is everything a command needs to trade
type session struct {
	cfg     params.Config
	logger  *zap.Logger
	ex      *core.Exchange
	journal storage.Store // nil when disabled
}

func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Sugar().Warnw("journal_close_failed", "err", err)
		}
	}
	_ = s.logger.Sync()
}

// openSession loads snapshots, builds the exchange and wires the journal
func openSession(cfg params.Config, logger *zap.Logger) (*session, error) {
	sugar := logger.Sugar()

	accounts, err := ingest.NewLoader(cfg, logger).Load()
	if err != nil {
		return nil, err
	}
	ex, err := core.NewExchange(accounts, logger)
	if err != nil {
		return nil, err
	}

	journal, err := storage.Open(cfg.Journal.Path, util.RealClock{})
	if err != nil {
		return nil, err
	}
	if journal != nil {
		sugar.Infow("journal_opened", "path", cfg.Journal.Path)
		ex.OnAllocation(func(res allocation.Result) {
			rec, err := journal.Append(res)
			if err != nil {
				sugar.Warnw("journal_append_failed", "digest", res.Digest, "err", err)
				return
			}
			sugar.Debugw("journal_appended", "id", rec.ID, "seq", rec.Seq)
		})
	}

	return &session{cfg: cfg, logger: logger, ex: ex, journal: journal}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
