package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is a flat-file identity provider",
	Long: `A minimal identity provider: account registration, password login,
bearer session tokens, and one-time-passcode password reset, backed by
per-account flat files.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
