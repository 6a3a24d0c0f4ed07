package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	cfg := &Config{
		TenantID:      "contoso.onmicrosoft.com",
		Client:        ClientCredentials{ID: "client-id", Secret: "s3cret"},
		DefaultSource: SourceGraph,
	}
	require.NoError(t, cfg.Save(dir, "correct horse"))
	require.True(t, Exists(dir))

	loaded, err := Load(dir, "correct horse")
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	// Saving again keeps the salt, so the same password still works.
	loaded.SnapshotPath = "/tmp/snap.json"
	require.NoError(t, loaded.Save(dir, "correct horse"))
	again, err := Load(dir, "correct horse")
	require.NoError(t, err)
	require.Equal(t, "/tmp/snap.json", again.SnapshotPath)
}

func TestLoadWrongPassword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, (&Config{DefaultSource: SourceSnapshot, SnapshotPath: "x"}).Save(dir, "password-one"))

	_, err := Load(dir, "password-two")
	require.ErrorIs(t, err, ErrWrongPassword)
}

func TestLoadNotInitialized(t *testing.T) {
	_, err := Load(t.TempDir(), "whatever")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.False(t, Exists(t.TempDir()))
}

func TestValidate(t *testing.T) {
	require.NoError(t, (&Config{DefaultSource: SourceSnapshot, SnapshotPath: "s.json"}).Validate())
	require.Error(t, (&Config{DefaultSource: SourceSnapshot}).Validate())

	graph := &Config{DefaultSource: SourceGraph, TenantID: "t", Client: ClientCredentials{ID: "c"}}
	require.Error(t, graph.Validate())
	graph.RefreshToken = "rt"
	require.NoError(t, graph.Validate())

	require.Error(t, (&Config{DefaultSource: "ews"}).Validate())
}

func TestGetMasterPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "from-environment")
	p, err := GetMasterPassword(true)
	require.NoError(t, err)
	require.Equal(t, "from-environment", p)
}
