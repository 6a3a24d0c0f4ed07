package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/FranLegon/mailbox-usage-report/internal/database"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/spf13/cobra"
)

var (
	policyIssueWarning        string
	policyProhibitSend        string
	policyProhibitSendReceive string
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage quota defaults used when a mailbox sets no quota of its own.",
	Long: `Graph does not expose mailbox database defaults, so they are kept in a local
SQLite database. A policy is named after a mail domain (e.g. contoso.com); the policy
named "default" applies to every domain without its own policy.`,
}

var policySetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or replace a quota policy.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicySet,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quota policies.",
	Args:  cobra.NoArgs,
	RunE:  runPolicyList,
}

var policyRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a quota policy.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyRemove,
}

func init() {
	policySetCmd.Flags().StringVar(&policyIssueWarning, "issue-warning", "", `Issue warning quota, e.g. "900 MB" (empty or "Unlimited" for none)`)
	policySetCmd.Flags().StringVar(&policyProhibitSend, "prohibit-send", "", `Prohibit send quota, e.g. "1 GB"`)
	policySetCmd.Flags().StringVar(&policyProhibitSendReceive, "prohibit-send-receive", "", `Prohibit send/receive quota, e.g. "1.5 GB"`)

	policyCmd.AddCommand(policySetCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyRemoveCmd)
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	p := database.Policy{Name: args[0]}
	var err error
	if p.IssueWarning, err = parseQuotaFlag("issue-warning", policyIssueWarning); err != nil {
		return err
	}
	if p.ProhibitSend, err = parseQuotaFlag("prohibit-send", policyProhibitSend); err != nil {
		return err
	}
	if p.ProhibitSendReceive, err = parseQuotaFlag("prohibit-send-receive", policyProhibitSendReceive); err != nil {
		return err
	}

	db, err := database.Open(policyDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetPolicy(cmd.Context(), p); err != nil {
		return fmt.Errorf("failed to save policy %q: %w", p.Name, err)
	}
	logger.Info("Saved quota policy %q.", p.Name)
	return nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	db, err := database.Open(policyDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	policies, err := db.ListPolicies(cmd.Context())
	if err != nil {
		return err
	}
	if len(policies) == 0 {
		logger.Info("No quota policies defined.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tISSUE WARNING\tPROHIBIT SEND\tPROHIBIT SEND/RECEIVE\tUPDATED")
	for _, p := range policies {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name,
			formatSetting(p.IssueWarning), formatSetting(p.ProhibitSend), formatSetting(p.ProhibitSendReceive),
			p.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runPolicyRemove(cmd *cobra.Command, args []string) error {
	db, err := database.Open(policyDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RemovePolicy(cmd.Context(), args[0]); err != nil {
		return err
	}
	logger.Info("Removed quota policy %q.", args[0])
	return nil
}
