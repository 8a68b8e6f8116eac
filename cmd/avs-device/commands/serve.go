package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saker-ai/avs-device/pkg/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulator REST and websocket server",
	Long: `Serve the simulator API.

Endpoints:
  GET  /health
  GET  /api/v1/state
  POST /api/v1/recognize   {"utterance": "...", "new_session": false}
  POST /api/v1/user-event  {"event": {...}}
  POST /api/v1/session
  PUT  /api/v1/locale      {"locale": "en-GB"}
  GET  /simulator-ws

API calls take the access token from "Authorization: Bearer" and the
region from ?region=, falling back to the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		server := runtime.NewWithConfig(cfg, logger)
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Run()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
			return err
		}
		return <-errCh
	},
}
