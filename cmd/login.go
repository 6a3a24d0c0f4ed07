package cmd

import (
	"github.com/FranLegon/mailbox-usage-report/internal/auth"
	"github.com/FranLegon/mailbox-usage-report/internal/config"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize Graph access with your own account.",
	Long: `Runs the OAuth authorization code flow in the browser and stores the resulting
refresh token in the encrypted configuration. Use it when the app registration has no
client secret, or when reports should run with delegated rather than application
permissions. The account needs access to the target mailboxes and the usage reports.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := config.GetMasterPassword(false)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configDir, password)
	if err != nil {
		return err
	}

	logger.Info("Proceeding with OAuth flow for tenant %s...", cfg.TenantID)
	oc := auth.OAuthConfig(cfg.TenantID, cfg.Client.ID, cfg.Client.Secret)
	refreshToken, err := auth.PerformOAuthFlow(cmd.Context(), oc)
	if err != nil {
		return err
	}

	cfg.RefreshToken = refreshToken
	cfg.DefaultSource = config.SourceGraph
	if err := cfg.Save(configDir, password); err != nil {
		return err
	}
	logger.Info("Successfully authorized. Refresh token stored.")
	return nil
}
