package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/FranLegon/mailbox-usage-report/internal/auth"
	"github.com/FranLegon/mailbox-usage-report/internal/config"
	"github.com/FranLegon/mailbox-usage-report/internal/database"
	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/FranLegon/mailbox-usage-report/internal/microsoft"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/size"
	"github.com/FranLegon/mailbox-usage-report/internal/snapshot"
	"github.com/manifoldco/promptui"
)

// openDirectory builds the exchange.Directory selected by flags and config.
// The returned cleanup must be called when the directory is no longer needed.
func openDirectory(ctx context.Context) (exchange.Directory, func(), error) {
	noop := func() {}

	source := sourceFlag
	if snapshotFlag != "" {
		if source != "" && source != config.SourceSnapshot {
			return nil, noop, fmt.Errorf("--snapshot cannot be combined with --source %s", source)
		}
		logger.Debug("Loading snapshot %s", snapshotFlag)
		dir, err := snapshot.Load(snapshotFlag)
		return dir, noop, err
	}

	password, err := config.GetMasterPassword(false)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to read master password: %w", err)
	}
	cfg, err := config.Load(configDir, password)
	if err != nil {
		return nil, noop, err
	}
	if source != "" {
		cfg.DefaultSource = source
	}
	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.DefaultSource {
	case config.SourceSnapshot:
		logger.Debug("Loading snapshot %s", cfg.SnapshotPath)
		dir, err := snapshot.Load(cfg.SnapshotPath)
		return dir, noop, err
	case config.SourceGraph:
		cred, err := auth.Credential(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		policies, cleanup := openPolicies()
		dir, err := microsoft.NewDirectory(cred, policies)
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		return dir, cleanup, nil
	}
	return nil, noop, fmt.Errorf("unknown source %q", cfg.DefaultSource)
}

// openPolicies opens the policy store if it exists. Reports still work
// without one; quotas then only come from the mailbox itself.
func openPolicies() (microsoft.PolicyStore, func()) {
	if _, err := os.Stat(policyDBPath); err != nil {
		logger.Debug("No policy database at %s", policyDBPath)
		return nil, func() {}
	}
	db, err := database.Open(policyDBPath)
	if err != nil {
		logger.Warning("Could not open policy database, continuing without defaults: %v", err)
		return nil, func() {}
	}
	return db, func() { db.Close() }
}

// parseQuotaFlag accepts "Unlimited", an empty string or an Exchange-style size.
func parseQuotaFlag(name, text string) (quota.Setting, error) {
	s := quota.ParseSetting(text)
	t := strings.TrimSpace(text)
	if !s.IsSet() && t != "" && !strings.EqualFold(t, "unlimited") {
		return quota.Unset(), fmt.Errorf("invalid --%s %q: expected e.g. \"900 MB\", \"2 GB\" or \"Unlimited\"", name, text)
	}
	return s, nil
}

func promptForInput(label string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{Label: label, Validate: validate}
	return prompt.Run()
}

func required(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("a value is required")
	}
	return nil
}

func describeLookupFailure(identity string, err error) error {
	if errors.Is(err, exchange.ErrMailboxNotFound) {
		return fmt.Errorf("mailbox %q could not be found: %w", identity, err)
	}
	return err
}

func formatSetting(s quota.Setting) string {
	if v, ok := s.Value(); ok {
		return size.FormatMB(v) + " MB"
	}
	return "Unlimited"
}
