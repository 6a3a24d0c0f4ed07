package cmd

import (
	"os"

	"github.com/FranLegon/mailbox-usage-report/internal/report"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	reportTop     int
	reportNoColor bool
)

var reportCmd = &cobra.Command{
	Use:   "report [mailbox]",
	Short: "Print folder sizes and quota headroom for one mailbox.",
	Long: `Looks up the mailbox, lists its folders sorted by size and prints a quota summary.
Quotas not set on the mailbox fall back to its database defaults. Folders whose size
cannot be read are shown as N/A and counted as 0 MB. Free space is "Not computable"
when no prohibit-send quota applies, and negative when the mailbox is over quota.

If no mailbox is given it is prompted for.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportTop, "top", 0, "Only list the N largest folders (0 lists all)")
	reportCmd.Flags().BoolVar(&reportNoColor, "no-color", false, "Disable colored output")
}

func runReport(cmd *cobra.Command, args []string) error {
	identity, err := mailboxArg(args)
	if err != nil {
		return err
	}

	dir, cleanup, err := openDirectory(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := report.Generate(cmd.Context(), dir, identity)
	if err != nil {
		return describeLookupFailure(identity, err)
	}

	color := !reportNoColor && isatty.IsTerminal(os.Stdout.Fd())
	return report.Render(cmd.OutOrStdout(), r, report.Options{Top: reportTop, Color: color})
}

func mailboxArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return promptForInput("Mailbox (alias, UPN or SMTP address)", required)
}
