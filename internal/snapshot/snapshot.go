// Package snapshot serves mailbox data from a JSON export of the Exchange
// Management Shell, for example:
//
//	$m = Get-Mailbox jdoe
//	@{
//	    Mailboxes = @(@{
//	        Identity = $m.Alias; DisplayName = $m.DisplayName
//	        PrimarySmtpAddress = "$($m.PrimarySmtpAddress)"; Database = "$($m.Database)"
//	        UseDatabaseQuotaDefaults = $m.UseDatabaseQuotaDefaults
//	        IssueWarningQuota = "$($m.IssueWarningQuota)"; ProhibitSendQuota = "$($m.ProhibitSendQuota)"
//	        ProhibitSendReceiveQuota = "$($m.ProhibitSendReceiveQuota)"
//	        FolderStatistics = @(Get-MailboxFolderStatistics jdoe | Select FolderPath, FolderType,
//	            ItemsInFolder, ItemsInFolderAndSubfolders, @{n='FolderAndSubfolderSize'; e={"$($_.FolderAndSubfolderSize)"}})
//	        Statistics = Get-MailboxStatistics jdoe | Select @{n='TotalItemSize'; e={"$($_.TotalItemSize)"}}, ItemCount
//	    })
//	    Databases = @(Get-MailboxDatabase | Select Name, @{n='IssueWarningQuota'; e={"$($_.IssueWarningQuota)"}}, ...)
//	} | ConvertTo-Json -Depth 5 > snapshot.json
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
)

type file struct {
	Mailboxes []mailboxEntry  `json:"Mailboxes"`
	Databases []databaseEntry `json:"Databases"`
}

type mailboxEntry struct {
	Identity                 string        `json:"Identity"`
	Alias                    string        `json:"Alias"`
	DisplayName              string        `json:"DisplayName"`
	PrimarySmtpAddress       string        `json:"PrimarySmtpAddress"`
	UserPrincipalName        string        `json:"UserPrincipalName"`
	Database                 string        `json:"Database"`
	UseDatabaseQuotaDefaults *bool         `json:"UseDatabaseQuotaDefaults"`
	IssueWarningQuota        string        `json:"IssueWarningQuota"`
	ProhibitSendQuota        string        `json:"ProhibitSendQuota"`
	ProhibitSendReceiveQuota string        `json:"ProhibitSendReceiveQuota"`
	FolderStatistics         []folderEntry `json:"FolderStatistics"`
	Statistics               *statsEntry   `json:"Statistics"`
}

type folderEntry struct {
	FolderPath                 string `json:"FolderPath"`
	FolderType                 string `json:"FolderType"`
	ItemsInFolder              int64  `json:"ItemsInFolder"`
	ItemsInFolderAndSubfolders int64  `json:"ItemsInFolderAndSubfolders"`
	FolderAndSubfolderSize     string `json:"FolderAndSubfolderSize"`
}

type statsEntry struct {
	TotalItemSize string `json:"TotalItemSize"`
	ItemCount     int64  `json:"ItemCount"`
}

type databaseEntry struct {
	Name                     string `json:"Name"`
	IssueWarningQuota        string `json:"IssueWarningQuota"`
	ProhibitSendQuota        string `json:"ProhibitSendQuota"`
	ProhibitSendReceiveQuota string `json:"ProhibitSendReceiveQuota"`
}

// Directory implements exchange.Directory over a loaded snapshot.
type Directory struct {
	path      string
	mailboxes []mailboxEntry
	databases []databaseEntry
}

// Load reads and decodes the snapshot at path.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	// PowerShell's Out-File writes a byte order mark.
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &Directory{path: path, mailboxes: f.Mailboxes, databases: f.Databases}, nil
}

func (e mailboxEntry) matches(identity string) bool {
	for _, v := range []string{e.Identity, e.Alias, e.PrimarySmtpAddress, e.UserPrincipalName} {
		if v != "" && strings.EqualFold(v, identity) {
			return true
		}
	}
	return false
}

func (d *Directory) find(identity string) (*mailboxEntry, error) {
	var found []*mailboxEntry
	for i := range d.mailboxes {
		if d.mailboxes[i].matches(identity) {
			found = append(found, &d.mailboxes[i])
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %q is not in snapshot %s", exchange.ErrMailboxNotFound, identity, d.path)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches %d mailboxes", exchange.ErrMailboxNotFound, identity, len(found))
	}
}

func (d *Directory) GetMailbox(_ context.Context, identity string) (*exchange.Mailbox, error) {
	e, err := d.find(identity)
	if err != nil {
		return nil, err
	}
	id := e.Identity
	if id == "" {
		id = identity
	}
	m := &exchange.Mailbox{
		Identity:           id,
		DisplayName:        e.DisplayName,
		PrimarySMTPAddress: e.PrimarySmtpAddress,
		Database:           e.Database,
	}
	if e.UseDatabaseQuotaDefaults == nil || !*e.UseDatabaseQuotaDefaults {
		m.IssueWarningQuota = quota.ParseSetting(e.IssueWarningQuota)
		m.ProhibitSendQuota = quota.ParseSetting(e.ProhibitSendQuota)
		m.ProhibitSendReceiveQuota = quota.ParseSetting(e.ProhibitSendReceiveQuota)
	}
	return m, nil
}

func (d *Directory) GetDatabaseDefaults(_ context.Context, database string) (*exchange.DatabaseDefaults, error) {
	for _, db := range d.databases {
		if strings.EqualFold(db.Name, database) {
			return &exchange.DatabaseDefaults{
				Name:                     db.Name,
				IssueWarningQuota:        quota.ParseSetting(db.IssueWarningQuota),
				ProhibitSendQuota:        quota.ParseSetting(db.ProhibitSendQuota),
				ProhibitSendReceiveQuota: quota.ParseSetting(db.ProhibitSendReceiveQuota),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", exchange.ErrDatabaseNotFound, database)
}

func (d *Directory) GetFolderStatistics(_ context.Context, m *exchange.Mailbox) ([]exchange.FolderStatistic, error) {
	e, err := d.find(m.Identity)
	if err != nil {
		return nil, err
	}
	stats := make([]exchange.FolderStatistic, 0, len(e.FolderStatistics))
	for _, f := range e.FolderStatistics {
		stats = append(stats, exchange.FolderStatistic{
			FolderPath:                 f.FolderPath,
			FolderType:                 f.FolderType,
			ItemsInFolder:              exchange.ClampCount(f.ItemsInFolder),
			ItemsInFolderAndSubfolders: exchange.ClampCount(f.ItemsInFolderAndSubfolders),
			FolderAndSubfolderSize:     f.FolderAndSubfolderSize,
		})
	}
	return stats, nil
}

func (d *Directory) GetMailboxStatistics(_ context.Context, m *exchange.Mailbox) (*exchange.MailboxStatistics, error) {
	e, err := d.find(m.Identity)
	if err != nil {
		return nil, err
	}
	if e.Statistics == nil {
		return nil, fmt.Errorf("snapshot has no statistics for %q", m.Identity)
	}
	return &exchange.MailboxStatistics{
		TotalItemSize: e.Statistics.TotalItemSize,
		ItemCount:     exchange.ClampCount(e.Statistics.ItemCount),
	}, nil
}
