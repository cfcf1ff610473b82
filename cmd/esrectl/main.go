// Command esrectl renders displays, resolves index patterns and edits
// judgements against an ESRE backend from the shell.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "esrectl",
		Short: "ESRE relevance console from the command line",
		Long: `esrectl talks to an ESRE backend configured through ESRE_* environment
variables (ESRE_BACKEND_URL, ESRE_API_KEY, ESRE_TIMEOUT_MS).

The render and resolve commands also work offline.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		renderCmd(),
		resolveCmd(),
		judgementsCmd(),
		rateCmd(),
		clearCmd(),
		judgeCmd(),
		versionCmd(),
	)
	return rootCmd
}
