package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"relayer/logger"
	"relayer/types"
)

var identityCmd = cobra.Command{
	Use:   "identity",
	Short: "Print the relayer public key and operating mode",
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()
		s, err := buildSigner(settings)
		if err != nil {
			logger.GlobalLogger.Error("Failed to load relayer key", "err", err)
			return
		}

		out, _ := json.MarshalIndent(types.HealthStatus{
			Status:        "online",
			RelayerPubkey: s.PublicKey(),
			Mode:          settings.Mode,
		}, "", "  ")
		fmt.Println(string(out))
	},
}

func init() {
	RootCmd.AddCommand(&identityCmd)
}
