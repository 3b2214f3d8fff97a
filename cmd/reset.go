package cmd

import (
	"github.com/spf13/cobra"

	"relayer/db"
	"relayer/logger"
)

var resetCmd = cobra.Command{
	Use:   "reset",
	Short: "Drop the relay audit tables",
	Run: func(cmd *cobra.Command, args []string) {
		if !db.Enabled() {
			logger.GlobalLogger.Warn("CLICKHOUSE_ADDR is not set, nothing to reset")
			return
		}
		ch, err := db.NewClickhouse()
		if err != nil {
			logger.GlobalLogger.Error("Audit database unavailable", "err", err)
			return
		}
		defer ch.Close()

		logger.GlobalLogger.Info("Dropping tables in database...")
		if err := ch.DropTables(); err != nil {
			logger.GlobalLogger.Error("Failed to drop tables", "err", err)
		}
		logger.GlobalLogger.Info("Done.")
	},
}

func init() {
	RootCmd.AddCommand(&resetCmd)
}
