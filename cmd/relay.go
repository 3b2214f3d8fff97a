package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"relayer/logger"
	"relayer/relay"
	"relayer/types"
)

var (
	relayTx       string
	relayEncoding string
	relayProfit   string
	relayIdentity string
)

var relayCmd = cobra.Command{
	Use:   "relay",
	Short: "Relay a single partially signed transaction and print the response",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("relay")

		claimed, err := decimal.NewFromString(relayProfit)
		if err != nil {
			logger.GlobalLogger.Error("Invalid --profit", "value", relayProfit, "err", err)
			return
		}

		core, cleanup, err := buildCore(loadSettings())
		if err != nil {
			logger.GlobalLogger.Error("Failed to build relayer", "err", err)
			return
		}
		defer cleanup()

		res, err := core.Relay(context.Background(), types.RelayRequest{
			Transaction:       relayTx,
			Encoding:          relayEncoding,
			ClaimedProfit:     claimed,
			SubmitterIdentity: relayIdentity,
		})
		code, resp := relay.Respond(res, err)

		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		logger.GlobalLogger.Info("Relay finished", "http_status", code)
	},
}

func init() {
	relayCmd.Flags().StringVarP(&relayTx, "tx", "t", "", "encoded partially signed transaction")
	relayCmd.Flags().StringVarP(&relayEncoding, "encoding", "e", types.EncodingBase58, "transaction text encoding (base58 or base64)")
	relayCmd.Flags().StringVarP(&relayProfit, "profit", "p", "", "claimed profit in SOL")
	relayCmd.Flags().StringVarP(&relayIdentity, "identity", "i", "", "submitter public key")
	_ = relayCmd.MarkFlagRequired("tx")
	_ = relayCmd.MarkFlagRequired("profit")
	_ = relayCmd.MarkFlagRequired("identity")
	RootCmd.AddCommand(&relayCmd)
}
