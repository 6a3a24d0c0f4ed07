// Package exchange defines what the report needs from a mail administration
// backend. Backends validate and default their data before handing it out.
package exchange

import (
	"context"
	"errors"

	"github.com/FranLegon/mailbox-usage-report/internal/quota"
)

var (
	// ErrMailboxNotFound is returned when the target mailbox cannot be resolved.
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrDatabaseNotFound is returned when no defaults exist for a database or policy.
	ErrDatabaseNotFound = errors.New("mailbox database not found")
)

// Mailbox carries the mailbox-level quota overrides. A quota that the mailbox
// does not override is unset.
type Mailbox struct {
	Identity           string
	DisplayName        string
	PrimarySMTPAddress string
	// Database identifies the mailbox database or policy holding the defaults.
	Database                 string
	IssueWarningQuota        quota.Setting
	ProhibitSendQuota        quota.Setting
	ProhibitSendReceiveQuota quota.Setting
}

// DatabaseDefaults holds the quota defaults applied to every mailbox of a
// database unless overridden.
type DatabaseDefaults struct {
	Name                     string
	IssueWarningQuota        quota.Setting
	ProhibitSendQuota        quota.Setting
	ProhibitSendReceiveQuota quota.Setting
}

// FolderStatistic is one row of folder statistics. FolderAndSubfolderSize is
// the raw text as printed by the server, e.g. "1.5 GB (1,610,612,736 bytes)".
type FolderStatistic struct {
	FolderPath                 string
	FolderType                 string
	ItemsInFolder              int64
	ItemsInFolderAndSubfolders int64
	FolderAndSubfolderSize     string
}

// MailboxStatistics is the server's own view of the mailbox size. It is shown
// next to the computed total and never used for arithmetic.
type MailboxStatistics struct {
	TotalItemSize string
	ItemCount     int64
}

// Directory is a read-only view of a mail system.
type Directory interface {
	// GetMailbox returns ErrMailboxNotFound when identity does not resolve.
	GetMailbox(ctx context.Context, identity string) (*Mailbox, error)
	// GetDatabaseDefaults returns ErrDatabaseNotFound when there are no defaults.
	GetDatabaseDefaults(ctx context.Context, database string) (*DatabaseDefaults, error)
	GetFolderStatistics(ctx context.Context, mailbox *Mailbox) ([]FolderStatistic, error)
	GetMailboxStatistics(ctx context.Context, mailbox *Mailbox) (*MailboxStatistics, error)
}

// ClampCount returns n, or zero when n is negative.
func ClampCount(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
