// Package cli implements the Insight command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Insight: verifiable AI research on a decentralized inference network",
	Long: `Insight answers research questions through a decentralized inference
network: the HTTP router, direct on-chain task submission, or a canned demo.

Answers produced by the network are marked verified and carry the session,
task and transaction that produced them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
