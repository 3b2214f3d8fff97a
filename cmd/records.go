package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relayer/db"
	"relayer/logger"
)

var recordsLimit uint

var recordsCmd = cobra.Command{
	Use:   "records",
	Short: "Print the most recent relay decisions from the audit log",
	Run: func(cmd *cobra.Command, args []string) {
		if !db.Enabled() {
			logger.GlobalLogger.Warn("CLICKHOUSE_ADDR is not set, audit log is disabled")
			return
		}
		ch, err := db.NewClickhouse()
		if err != nil {
			logger.GlobalLogger.Error("Audit database unavailable", "err", err)
			return
		}
		defer ch.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		records, err := ch.QueryRecentRecords(ctx, recordsLimit)
		if err != nil {
			logger.GlobalLogger.Error("Failed to query relay records", "err", err)
			return
		}
		for _, r := range records {
			fmt.Printf("%s %-8s %-24s identity=%s signature=%s cost=%d channel=%s ref=%s %s\n",
				r.Timestamp.Format("2006-01-02T15:04:05Z"), r.Status, r.Code,
				r.SubmitterIdentity, r.Signature, r.CostLamports, r.Channel, r.ReferenceId, r.Reason)
		}
	},
}

func init() {
	recordsCmd.Flags().UintVarP(&recordsLimit, "limit", "n", 20, "number of records to print")
	RootCmd.AddCommand(&recordsCmd)
}
