package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/report"
	"github.com/stretchr/testify/require"
)

const fixture = "\ufeff" + `{
  "Mailboxes": [
    {
      "Identity": "jdoe",
      "DisplayName": "John Doe",
      "PrimarySmtpAddress": "jdoe@contoso.com",
      "Database": "DB01",
      "UseDatabaseQuotaDefaults": false,
      "IssueWarningQuota": "Unlimited",
      "ProhibitSendQuota": "1 GB (1,073,741,824 bytes)",
      "ProhibitSendReceiveQuota": "Unlimited",
      "FolderStatistics": [
        {"FolderPath": "/Inbox", "FolderType": "Inbox", "ItemsInFolder": 120, "ItemsInFolderAndSubfolders": 130, "FolderAndSubfolderSize": "1.5 GB (1,610,612,736 bytes)"},
        {"FolderPath": "/Sent Items", "FolderType": "SentItems", "ItemsInFolder": 40, "ItemsInFolderAndSubfolders": 40, "FolderAndSubfolderSize": "200 MB (209,715,200 bytes)"},
        {"FolderPath": "/Drafts", "FolderType": "Drafts", "ItemsInFolder": -1, "ItemsInFolderAndSubfolders": 0, "FolderAndSubfolderSize": "0 B (0 bytes)"}
      ],
      "Statistics": {"TotalItemSize": "1.695 GB (1,820,327,936 bytes)", "ItemCount": 160}
    },
    {
      "Identity": "asmith",
      "PrimarySmtpAddress": "asmith@contoso.com",
      "Database": "DB02",
      "UseDatabaseQuotaDefaults": true,
      "ProhibitSendQuota": "5 GB (5,368,709,120 bytes)",
      "FolderStatistics": []
    }
  ],
  "Databases": [
    {"Name": "DB01", "IssueWarningQuota": "900 MB (943,718,400 bytes)", "ProhibitSendQuota": "2 GB (2,147,483,648 bytes)", "ProhibitSendReceiveQuota": "Unlimited"}
  ]
}`

func load(t *testing.T) *Directory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0600))
	d, err := Load(path)
	require.NoError(t, err)
	return d
}

func TestGetMailbox(t *testing.T) {
	d := load(t)

	m, err := d.GetMailbox(context.Background(), "JDOE@contoso.com")
	require.NoError(t, err)
	require.Equal(t, "jdoe", m.Identity)
	require.Equal(t, "DB01", m.Database)
	require.False(t, m.IssueWarningQuota.IsSet())
	require.Equal(t, quota.MB(1024), m.ProhibitSendQuota)
}

func TestGetMailboxUsesDatabaseDefaults(t *testing.T) {
	d := load(t)

	m, err := d.GetMailbox(context.Background(), "asmith")
	require.NoError(t, err)
	require.False(t, m.ProhibitSendQuota.IsSet())
}

func TestGetMailboxNotFound(t *testing.T) {
	d := load(t)

	_, err := d.GetMailbox(context.Background(), "nobody")
	require.ErrorIs(t, err, exchange.ErrMailboxNotFound)
}

func TestGetDatabaseDefaults(t *testing.T) {
	d := load(t)

	db, err := d.GetDatabaseDefaults(context.Background(), "db01")
	require.NoError(t, err)
	require.Equal(t, quota.MB(900), db.IssueWarningQuota)
	require.Equal(t, quota.MB(2048), db.ProhibitSendQuota)
	require.False(t, db.ProhibitSendReceiveQuota.IsSet())

	_, err = d.GetDatabaseDefaults(context.Background(), "DB02")
	require.ErrorIs(t, err, exchange.ErrDatabaseNotFound)
}

func TestGetMailboxStatisticsMissing(t *testing.T) {
	d := load(t)

	m, err := d.GetMailbox(context.Background(), "asmith")
	require.NoError(t, err)
	_, err = d.GetMailboxStatistics(context.Background(), m)
	require.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestReportFromSnapshot(t *testing.T) {
	r, err := report.Generate(context.Background(), load(t), "jdoe")
	require.NoError(t, err)

	require.Equal(t, 1736.0, r.TotalUsedMB)
	require.Equal(t, quota.MB(900), r.IssueWarning)
	require.Equal(t, quota.MB(1024), r.ProhibitSend)
	free, ok := r.FreeSpace.Value()
	require.True(t, ok)
	require.Equal(t, -712.0, free)
	require.Zero(t, r.Folders[2].ItemCount)
	require.Equal(t, "1.695 GB (1,820,327,936 bytes)", r.ServerTotalItemSize)
}
