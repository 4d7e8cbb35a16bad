package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/uhyunpark/metaexchange/pkg/api"
	"github.com/uhyunpark/metaexchange/pkg/util"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}

			logger, err := util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
			if err != nil {
				return err
			}
			sugar := logger.Sugar()
			sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

			s, err := openSession(cfg, logger)
			if err != nil {
				sugar.Errorw("session_open_failed", "err", err)
				return err
			}
			defer s.Close()

			srv := api.NewServer(s.ex, api.Options{
				Journal:        s.journal,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         logger,
			})

			ctx := cmd.Context()
			errc := make(chan error, 1)
			go func() { errc <- srv.Start(cfg.Server.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			sugar.Infow("api_stopping")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errc
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from API_ADDR or :8080)")
	return cmd
}
