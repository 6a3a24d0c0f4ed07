package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/FranLegon/mailbox-usage-report/internal/crypto"
	"github.com/manifoldco/promptui"
)

const (
	// ConfigFile is the name of the encrypted configuration file.
	ConfigFile = "config.json.enc"
	// PolicyDBFile is the default name of the quota policy database.
	PolicyDBFile = "policies.db"
	// PasswordEnv overrides the master password prompt.
	PasswordEnv = "MAILBOX_REPORT_PASSWORD"

	SourceGraph    = "graph"
	SourceSnapshot = "snapshot"
)

var (
	// ErrNotInitialized is returned when no config exists yet.
	ErrNotInitialized = errors.New("configuration not found, please run the 'init' command first")
	// ErrWrongPassword is returned when the config cannot be decrypted.
	ErrWrongPassword = errors.New("failed to decrypt config: master password may be incorrect")
)

// Config is serialized to and from the encrypted config file.
type Config struct {
	TenantID      string            `json:"tenant_id"`
	Client        ClientCredentials `json:"client"`
	RefreshToken  string            `json:"refresh_token,omitempty"`
	DefaultSource string            `json:"default_source"`
	SnapshotPath  string            `json:"snapshot_path,omitempty"`
}

// ClientCredentials holds the Entra ID app registration used for Graph.
type ClientCredentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret,omitempty"`
}

// DefaultDir returns the per-user config directory.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "mailbox-usage-report")
}

// Exists reports whether dir already holds a config.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFile))
	return err == nil
}

// Validate checks that the selected source has what it needs.
func (c *Config) Validate() error {
	switch c.DefaultSource {
	case SourceGraph:
		if c.TenantID == "" || c.Client.ID == "" {
			return errors.New("graph source requires a tenant ID and client ID")
		}
		if c.Client.Secret == "" && c.RefreshToken == "" {
			return errors.New("graph source requires a client secret or a refresh token from 'login'")
		}
	case SourceSnapshot:
		if c.SnapshotPath == "" {
			return errors.New("snapshot source requires a snapshot path")
		}
	default:
		return fmt.Errorf("unknown source %q", c.DefaultSource)
	}
	return nil
}

// Load decrypts the config stored in dir.
func Load(dir, masterPassword string) (*Config, error) {
	salt, err := crypto.LoadSalt(filepath.Join(dir, crypto.SaltFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to read salt file: %w", err)
	}

	ciphertext, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	plaintext, err := crypto.Decrypt(ciphertext, crypto.DeriveKey(masterPassword, salt))
	if err != nil {
		return nil, ErrWrongPassword
	}

	var cfg Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Save encrypts the config into dir, creating the salt on first use.
func (c *Config) Save(dir, masterPassword string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	saltPath := filepath.Join(dir, crypto.SaltFileName)
	salt, err := crypto.LoadSalt(saltPath)
	if os.IsNotExist(err) {
		salt, err = crypto.GenerateAndSaveSalt(saltPath)
	}
	if err != nil {
		return fmt.Errorf("failed to prepare salt: %w", err)
	}

	plaintext, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ciphertext, err := crypto.Encrypt(plaintext, crypto.DeriveKey(masterPassword, salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt config for saving: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, ConfigFile), ciphertext, 0600)
}

// GetMasterPassword returns the password from PasswordEnv, or prompts for it
// without echoing. With confirm set the password is asked twice.
func GetMasterPassword(confirm bool) (string, error) {
	if p := os.Getenv(PasswordEnv); p != "" {
		return p, nil
	}

	validate := func(input string) error {
		if len(input) < 8 {
			return errors.New("password must be at least 8 characters long")
		}
		return nil
	}

	prompt := promptui.Prompt{
		Label:    "Enter Master Password",
		Mask:     '*',
		Validate: validate,
	}
	password, err := prompt.Run()
	if err != nil {
		return "", err
	}

	if confirm {
		confirmPrompt := promptui.Prompt{
			Label: "Confirm Master Password",
			Mask:  '*',
		}
		confirmation, err := confirmPrompt.Run()
		if err != nil {
			return "", err
		}
		if password != confirmation {
			return "", errors.New("passwords do not match")
		}
	}

	return password, nil
}
