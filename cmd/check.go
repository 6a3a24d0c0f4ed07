package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [mailbox]",
	Short: "Verify that the data source is reachable and the mailbox resolves.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	identity, err := mailboxArg(args)
	if err != nil {
		return err
	}

	dir, cleanup, err := openDirectory(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	m, err := dir.GetMailbox(cmd.Context(), identity)
	if err != nil {
		return describeLookupFailure(identity, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mailbox:              %s\n", m.Identity)
	if m.DisplayName != "" {
		fmt.Fprintf(out, "Display name:         %s\n", m.DisplayName)
	}
	if m.PrimarySMTPAddress != "" {
		fmt.Fprintf(out, "Primary SMTP address: %s\n", m.PrimarySMTPAddress)
	}
	if m.Database != "" {
		fmt.Fprintf(out, "Database / policy:    %s\n", m.Database)
	}
	return nil
}
