// Package microsoft reads mailbox data from Exchange Online through Microsoft Graph.
//
// Folder sizes come from the PR_MESSAGE_SIZE_EXTENDED property of each mail
// folder and quotas from the mailbox usage report. Graph has no notion of a
// mailbox database, so the domain of the mailbox's user principal name names
// the quota policy looked up in the local policy store.
package microsoft

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/retry"
	"github.com/FranLegon/mailbox-usage-report/internal/size"
)

// MaxFolderDepth bounds the folder walk.
const MaxFolderDepth = 50

// ReportPeriod is the usage report period passed to Graph.
const ReportPeriod = "D7"

// PolicyStore resolves organization-level quota defaults.
type PolicyStore interface {
	Defaults(ctx context.Context, name string) (*exchange.DatabaseDefaults, error)
}

// wellKnownFolders maps top-level display names to Exchange folder types.
var wellKnownFolders = map[string]string{
	"Inbox":                "Inbox",
	"Drafts":               "Drafts",
	"Sent Items":           "SentItems",
	"Deleted Items":        "DeletedItems",
	"Junk Email":           "JunkEmail",
	"Archive":              "Archive",
	"Outbox":               "Outbox",
	"Conversation History": "ConversationHistory",
}

// Directory implements exchange.Directory on Microsoft Graph.
type Directory struct {
	api      graphAPI
	policies PolicyStore
	retry    retry.Policy

	usageOnce      sync.Once
	usage          map[string]usageRow
	usageErr       error
	usageConcealed bool

	// upns maps mailbox identities handed out by GetMailbox to user principal names.
	upns map[string]string
}

// NewDirectory connects to Graph with cred. policies may be nil.
func NewDirectory(cred azcore.TokenCredential, policies PolicyStore) (*Directory, error) {
	client, err := newSDKClient(cred)
	if err != nil {
		return nil, err
	}
	return newDirectory(client, policies), nil
}

func newDirectory(api graphAPI, policies PolicyStore) *Directory {
	p := retry.Default
	p.Retryable = isThrottled
	return &Directory{api: api, policies: policies, retry: p, upns: make(map[string]string)}
}

func (d *Directory) call(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, d.retry, fn)
}

func (d *Directory) usageFor(ctx context.Context, upn string) (usageRow, bool, error) {
	d.usageOnce.Do(func() {
		var data []byte
		d.usageErr = d.call(ctx, func() error {
			var err error
			data, err = d.api.MailboxUsageDetail(ctx, ReportPeriod)
			return err
		})
		if d.usageErr == nil {
			d.usage, d.usageErr = parseUsageReport(data)
			d.usageConcealed = namesConcealed(d.usage)
		}
	})
	if d.usageErr != nil {
		return usageRow{}, false, d.usageErr
	}
	row, ok := d.usage[strings.ToLower(upn)]
	return row, ok, nil
}

func quotaFromBytes(b int64) quota.Setting {
	if b < 0 {
		return quota.Unset()
	}
	return quota.Bytes(b)
}

// policyName is the domain part of a user principal name.
func policyName(upn string) string {
	if _, domain, ok := strings.Cut(upn, "@"); ok && domain != "" {
		return strings.ToLower(domain)
	}
	return ""
}

func (d *Directory) GetMailbox(ctx context.Context, identity string) (*exchange.Mailbox, error) {
	var user *userInfo
	err := d.call(ctx, func() error {
		var err error
		user, err = d.api.GetUser(ctx, identity)
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %v", exchange.ErrMailboxNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	m := &exchange.Mailbox{
		Identity:           user.ID,
		DisplayName:        user.DisplayName,
		PrimarySMTPAddress: user.Mail,
		Database:           policyName(user.UserPrincipalName),
	}
	if m.Identity == "" {
		m.Identity = identity
	}
	d.upns[m.Identity] = user.UserPrincipalName

	tags := []string{"graph", user.UserPrincipalName}
	row, ok, err := d.usageFor(ctx, user.UserPrincipalName)
	switch {
	case err != nil:
		logger.WarningTagged(tags, "Could not read mailbox usage report, mailbox quotas unknown: %v", err)
	case !ok && d.usageConcealed:
		logger.WarningTagged(tags, "Usage report hides user names, mailbox quotas unknown. Turn off \"Display concealed user, group, and site names in all reports\" under Settings > Org settings > Reports in the Microsoft 365 admin center")
	case !ok:
		logger.WarningTagged(tags, "Mailbox not present in usage report, mailbox quotas unknown")
	default:
		m.IssueWarningQuota = quotaFromBytes(row.IssueWarning)
		m.ProhibitSendQuota = quotaFromBytes(row.ProhibitSend)
		m.ProhibitSendReceiveQuota = quotaFromBytes(row.ProhibitSendReceive)
	}
	return m, nil
}

func (d *Directory) GetDatabaseDefaults(ctx context.Context, database string) (*exchange.DatabaseDefaults, error) {
	if d.policies == nil {
		return nil, fmt.Errorf("%w: no policy store configured", exchange.ErrDatabaseNotFound)
	}
	return d.policies.Defaults(ctx, database)
}

type folderNode struct {
	info     folderInfo
	path     string
	kind     string
	children []*folderNode
}

func (n *folderNode) totals() (items, bytes int64) {
	items, bytes = n.info.ItemCount, n.info.SizeBytes
	for _, c := range n.children {
		ci, cb := c.totals()
		items += ci
		bytes += cb
	}
	return items, bytes
}

func (d *Directory) walk(ctx context.Context, userID, parentID, parentPath string, depth int) ([]*folderNode, error) {
	if depth > MaxFolderDepth {
		logger.WarningTagged([]string{"graph", parentPath}, "Max folder depth reached, not descending further")
		return nil, nil
	}
	var infos []folderInfo
	err := d.call(ctx, func() error {
		var err error
		infos, err = d.api.ListFolders(ctx, userID, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	nodes := make([]*folderNode, 0, len(infos))
	for _, info := range infos {
		n := &folderNode{info: info, path: path.Join(parentPath, info.DisplayName), kind: "User Created"}
		if depth == 0 {
			if t, ok := wellKnownFolders[info.DisplayName]; ok {
				n.kind = t
			}
		}
		if info.HasChildren {
			n.children, err = d.walk(ctx, userID, info.ID, n.path, depth+1)
			if err != nil {
				return nil, err
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func flatten(nodes []*folderNode, out []exchange.FolderStatistic) []exchange.FolderStatistic {
	for _, n := range nodes {
		items, bytes := n.totals()
		out = append(out, exchange.FolderStatistic{
			FolderPath:                 n.path,
			FolderType:                 n.kind,
			ItemsInFolder:              exchange.ClampCount(n.info.ItemCount),
			ItemsInFolderAndSubfolders: exchange.ClampCount(items),
			FolderAndSubfolderSize:     size.Format(bytes),
		})
		out = flatten(n.children, out)
	}
	return out
}

func (d *Directory) GetFolderStatistics(ctx context.Context, m *exchange.Mailbox) ([]exchange.FolderStatistic, error) {
	roots, err := d.walk(ctx, m.Identity, "", "/", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail folders: %w", err)
	}
	return flatten(roots, nil), nil
}

func (d *Directory) GetMailboxStatistics(ctx context.Context, m *exchange.Mailbox) (*exchange.MailboxStatistics, error) {
	upn, ok := d.upns[m.Identity]
	if !ok {
		return nil, fmt.Errorf("%w: %q was not looked up through this directory", exchange.ErrMailboxNotFound, m.Identity)
	}
	row, ok, err := d.usageFor(ctx, upn)
	if err != nil {
		return nil, err
	}
	if !ok || row.StorageUsed < 0 {
		return nil, errors.New("mailbox not present in usage report")
	}
	return &exchange.MailboxStatistics{
		TotalItemSize: size.Format(row.StorageUsed),
		ItemCount:     exchange.ClampCount(row.ItemCount),
	}, nil
}
