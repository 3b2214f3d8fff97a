package cmd

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "flashloan-relayer",
	Short: "Fee-paying relayer for flash-loan arbitrage transactions on solana",
}
