package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"faultscope/internal/logging"
	"faultscope/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP for chat front ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(false, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			if sess.catalog != nil {
				logger.Info("dataset indexed",
					"root", sess.catalog.Root(),
					"sessions", sess.catalog.SessionCount(),
					"warnings", len(sess.warnings))
			} else {
				logger.Warn("serving without an indexed dataset")
			}

			srv, err := server.New(cfg, sess.orch, sess.store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			srv.Stop()
			logger.Info("api server stopped")
			return nil
		},
	}
}
