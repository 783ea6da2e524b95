package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guardrail/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp(configPath, "serve")
		if err != nil {
			return err
		}

		// Jobs interrupted by the previous shutdown are finalized or
		// re-dispatched before the listener opens.
		outcomes, err := application.runner.RecoverAll(context.Background())
		if err != nil {
			return err
		}
		if len(outcomes) > 0 {
			application.logger.Info("startup recovery: %v", outcomes)
		}

		srv := server.New(application.runner, application.store, application.rules, application.audit,
			server.Config{
				Addr:            application.cfg.Server.Addr,
				ShutdownTimeout: application.cfg.Server.ShutdownTimeout,
				MaxUploadBytes:  application.cfg.Server.MaxUploadBytes,
			}, application.logger)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-stop
			if err := srv.Shutdown(); err != nil {
				application.logger.Error("shutdown: %v", err)
			}
		}()

		return srv.Start()
	},
}
