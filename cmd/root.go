package cmd

import (
	"os"
	"path/filepath"

	"github.com/FranLegon/mailbox-usage-report/internal/config"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	configDir    string
	policyDBPath string
	sourceFlag   string
	snapshotFlag string
	verbose      bool
	quiet        bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mailbox-usage-report",
	Short: "Report Exchange mailbox folder usage against its quotas.",
	Long: `mailbox-usage-report lists a mailbox's folders by size, totals them and compares
the total with the mailbox's issue-warning and prohibit-send quotas. Quotas not set
on the mailbox fall back to the defaults of its database (or quota policy).

Data comes either from Microsoft Graph (Exchange Online) or from a JSON snapshot
exported from the Exchange Management Shell. Nothing is ever written to the mail system.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			logger.DisableColors()
		}
		switch {
		case verbose:
			logger.SetLevel(logger.LogLevelDebug)
		case quiet:
			logger.SetLevel(logger.LogLevelError)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is the main entry point for the CLI application.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultDir := config.DefaultDir()
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", defaultDir, "Directory holding the encrypted configuration")
	rootCmd.PersistentFlags().StringVar(&policyDBPath, "policy-db", filepath.Join(defaultDir, config.PolicyDBFile), "SQLite database of quota policy defaults")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "Data source: graph or snapshot (default from config)")
	rootCmd.PersistentFlags().StringVar(&snapshotFlag, "snapshot", "", "Path to an Exchange Management Shell JSON snapshot (implies --source snapshot)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(policyCmd)
}
