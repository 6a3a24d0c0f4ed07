// Package report builds a mailbox usage report from a mail directory.
package report

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/size"
)

// Folder is one folder statistic after its size has been parsed.
type Folder struct {
	Path               string
	Type               string
	ItemCount          int64
	SubfolderItemCount int64
	RawSize            string
	SizeMB             float64
	SizeDisplay        string
}

// Parsed reports whether the raw size text was understood.
func (f Folder) Parsed() bool {
	return f.SizeDisplay != size.NotAvailable
}

// Report is the usage of one mailbox. It is not modified after Generate returns.
type Report struct {
	Identity    string
	DisplayName string
	Address     string
	Database    string

	// Folders are sorted by SizeMB, largest first.
	Folders     []Folder
	TotalUsedMB float64

	// ServerTotalItemSize is the server's own total, shown verbatim.
	ServerTotalItemSize string
	ServerItemCount     int64

	IssueWarning        quota.Setting
	ProhibitSend        quota.Setting
	ProhibitSendReceive quota.Setting
	FreeSpace           quota.Headroom
	State               quota.State

	GeneratedAt time.Time
}

// Generate queries dir for the mailbox identified by identity. Only a failed
// mailbox lookup or folder listing aborts; everything else degrades to
// sentinel values.
func Generate(ctx context.Context, dir exchange.Directory, identity string) (*Report, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("mailbox identity is required: %w", exchange.ErrMailboxNotFound)
	}
	tags := []string{identity}

	logger.DebugTagged(tags, "Looking up mailbox")
	mbx, err := dir.GetMailbox(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to look up mailbox %q: %w", identity, err)
	}

	defaults := lookupDefaults(ctx, dir, mbx, tags)

	logger.DebugTagged(tags, "Fetching folder statistics")
	stats, err := dir.GetFolderStatistics(ctx, mbx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch folder statistics for %q: %w", identity, err)
	}

	r := &Report{
		Identity:            mbx.Identity,
		DisplayName:         mbx.DisplayName,
		Address:             mbx.PrimarySMTPAddress,
		Database:            mbx.Database,
		ServerTotalItemSize: size.NotAvailable,
		GeneratedAt:         time.Now(),
	}

	if ms, err := dir.GetMailboxStatistics(ctx, mbx); err != nil {
		logger.WarningTagged(tags, "Could not fetch mailbox statistics: %v", err)
	} else if ms != nil {
		if ms.TotalItemSize != "" {
			r.ServerTotalItemSize = ms.TotalItemSize
		}
		r.ServerItemCount = exchange.ClampCount(ms.ItemCount)
	}

	r.Folders = ParseFolders(stats)
	for _, f := range r.Folders {
		if !f.Parsed() {
			logger.WarningTagged(append(tags, f.Path), "Unrecognized size %q, counted as 0 MB", f.RawSize)
		}
	}
	r.TotalUsedMB = TotalMB(r.Folders)

	r.IssueWarning = quota.Resolve(mbx.IssueWarningQuota, defaults.IssueWarningQuota)
	r.ProhibitSend = quota.Resolve(mbx.ProhibitSendQuota, defaults.ProhibitSendQuota)
	r.ProhibitSendReceive = quota.Resolve(mbx.ProhibitSendReceiveQuota, defaults.ProhibitSendReceiveQuota)
	r.FreeSpace = quota.FreeSpace(r.ProhibitSend, r.TotalUsedMB)
	r.State = quota.Classify(r.IssueWarning, r.ProhibitSend, r.TotalUsedMB)

	logger.DebugTagged(tags, "Parsed %d folders, %s MB used", len(r.Folders), size.FormatMB(r.TotalUsedMB))
	return r, nil
}

func lookupDefaults(ctx context.Context, dir exchange.Directory, mbx *exchange.Mailbox, tags []string) exchange.DatabaseDefaults {
	if mbx.Database == "" {
		logger.DebugTagged(tags, "Mailbox has no database, skipping database defaults")
		return exchange.DatabaseDefaults{}
	}
	d, err := dir.GetDatabaseDefaults(ctx, mbx.Database)
	switch {
	case errors.Is(err, exchange.ErrDatabaseNotFound):
		logger.InfoTagged(tags, "No quota defaults found for database %q", mbx.Database)
		return exchange.DatabaseDefaults{}
	case err != nil:
		logger.WarningTagged(tags, "Could not fetch quota defaults for database %q: %v", mbx.Database, err)
		return exchange.DatabaseDefaults{}
	case d == nil:
		return exchange.DatabaseDefaults{}
	}
	return *d
}

// ParseFolders parses every statistic's size and returns the folders sorted
// by size, largest first. Equal sizes keep path order.
func ParseFolders(stats []exchange.FolderStatistic) []Folder {
	folders := make([]Folder, 0, len(stats))
	for _, s := range stats {
		mb, display := size.Parse(s.FolderAndSubfolderSize)
		folders = append(folders, Folder{
			Path:               s.FolderPath,
			Type:               s.FolderType,
			ItemCount:          exchange.ClampCount(s.ItemsInFolder),
			SubfolderItemCount: exchange.ClampCount(s.ItemsInFolderAndSubfolders),
			RawSize:            s.FolderAndSubfolderSize,
			SizeMB:             mb,
			SizeDisplay:        display,
		})
	}
	slices.SortStableFunc(folders, func(a, b Folder) int {
		if c := cmp.Compare(b.SizeMB, a.SizeMB); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return folders
}

// TotalMB sums the parsed folder sizes.
func TotalMB(folders []Folder) float64 {
	var total float64
	for _, f := range folders {
		total += f.SizeMB
	}
	return size.Round(total)
}
