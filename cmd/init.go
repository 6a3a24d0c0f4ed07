package cmd

import (
	"errors"
	"os"

	"github.com/FranLegon/mailbox-usage-report/internal/config"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create or update the encrypted configuration.",
	Long: `Performs first-time setup by creating the encrypted configuration file.
It prompts for a master password and the data source settings: either the Entra ID
app registration used for Microsoft Graph, or the path of a snapshot file.
Run it again to change the settings of an existing configuration.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	var (
		cfg      *config.Config
		password string
		err      error
	)

	if !config.Exists(configDir) {
		logger.Info("First-time setup detected. Welcome!")
		password, err = config.GetMasterPassword(true)
		if err != nil {
			return err
		}
		cfg = &config.Config{}
	} else {
		password, err = config.GetMasterPassword(false)
		if err != nil {
			return err
		}
		cfg, err = config.Load(configDir, password)
		if err != nil {
			return err
		}
		logger.Info("Configuration loaded. Updating settings.")
	}

	sel := promptui.Select{
		Label: "Default data source",
		Items: []string{config.SourceGraph, config.SourceSnapshot},
	}
	if _, cfg.DefaultSource, err = sel.Run(); err != nil {
		return err
	}

	switch cfg.DefaultSource {
	case config.SourceGraph:
		if err := promptGraphSettings(cfg); err != nil {
			return err
		}
	case config.SourceSnapshot:
		validate := func(input string) error {
			if _, err := os.Stat(input); err != nil {
				return errors.New("file not found")
			}
			return nil
		}
		if cfg.SnapshotPath, err = promptForInput("Snapshot JSON path", validate); err != nil {
			return err
		}
	}

	if err := cfg.Save(configDir, password); err != nil {
		return err
	}

	logger.Info("Configuration saved to %s.", configDir)
	if cfg.DefaultSource == config.SourceGraph && cfg.Client.Secret == "" && cfg.RefreshToken == "" {
		logger.Info("No client secret given. Run 'login' to authorize with your own account.")
	}
	return nil
}

func promptGraphSettings(cfg *config.Config) error {
	var err error
	logger.Info("Enter the Entra ID app registration (from the Azure Portal):")
	if cfg.TenantID, err = promptForInput("Tenant ID", required); err != nil {
		return err
	}
	if cfg.Client.ID, err = promptForInput("Client ID", required); err != nil {
		return err
	}
	secret := promptui.Prompt{
		Label: "Client secret (leave empty to use 'login' instead)",
		Mask:  '*',
	}
	cfg.Client.Secret, err = secret.Run()
	return err
}
