package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relayer/logger"
	"relayer/server"
)

var servePort int

var serveCmd = cobra.Command{
	Use:   "serve",
	Short: "Serve the relay API over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("serve")

		settings := loadSettings()
		if servePort != 0 {
			settings.Port = servePort
		}

		core, cleanup, err := buildCore(settings)
		if err != nil {
			logger.GlobalLogger.Error("Failed to build relayer", "err", err)
			return
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(logger.GlobalLogger, server.Config{
			Port:           settings.Port,
			Mode:           settings.Mode,
			RateLimit:      settings.RateLimit,
			RateBurst:      settings.RateBurst,
			RequestTimeout: settings.RequestTimeout,
		}, core)
		if err := srv.Start(ctx); err != nil {
			logger.GlobalLogger.Error("Server stopped with error", "err", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "(Optional) port to listen on, overrides server.port")
	RootCmd.AddCommand(&serveCmd)
}
