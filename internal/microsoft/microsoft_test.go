package microsoft

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/logger"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/FranLegon/mailbox-usage-report/internal/report"
	"github.com/stretchr/testify/require"
)

const usageCSV = "\ufeff" + `Report Refresh Date,User Principal Name,Display Name,Is Deleted,Deleted Date,Created Date,Last Activity Date,Item Count,Storage Used (Byte),Issue Warning Quota (Byte),Prohibit Send Quota (Byte),Prohibit Send/Receive Quota (Byte),Deleted Item Count,Deleted Item Size (Byte),Deleted Item Quota (Byte),Has Archive,Recipient Type,Report Period
2026-10-18,JDoe@contoso.com,John Doe,False,,2020-01-01,2026-10-17,160,1820327936,,1073741824,,0,0,32212254720,False,User,7
2026-10-18,asmith@contoso.com,Anna Smith,False,,2020-01-01,2026-10-17,5,1024,104857600,107374182400,,0,0,0,False,User,7
`

type fakeGraph struct {
	users       map[string]*userInfo
	folders     map[string][]folderInfo
	usage       string
	usageCalls  int
	throttleFor int
	userErr     error
}

func (f *fakeGraph) GetUser(_ context.Context, identity string) (*userInfo, error) {
	if f.throttleFor > 0 {
		f.throttleFor--
		return nil, &graphError{Status: http.StatusTooManyRequests, Code: "TooManyRequests"}
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	u, ok := f.users[identity]
	if !ok {
		return nil, &graphError{Status: http.StatusNotFound, Code: "Request_ResourceNotFound", Message: "not found"}
	}
	return u, nil
}

func (f *fakeGraph) ListFolders(_ context.Context, _ string, parentID string) ([]folderInfo, error) {
	return f.folders[parentID], nil
}

func (f *fakeGraph) MailboxUsageDetail(_ context.Context, period string) ([]byte, error) {
	f.usageCalls++
	if period != ReportPeriod {
		return nil, errors.New("unexpected period")
	}
	return []byte(f.usage), nil
}

type fakePolicies map[string]*exchange.DatabaseDefaults

func (p fakePolicies) Defaults(_ context.Context, name string) (*exchange.DatabaseDefaults, error) {
	d, ok := p[name]
	if !ok {
		return nil, exchange.ErrDatabaseNotFound
	}
	return d, nil
}

func newFake() *fakeGraph {
	return &fakeGraph{
		users: map[string]*userInfo{
			"jdoe@contoso.com": {ID: "u1", DisplayName: "John Doe", UserPrincipalName: "jdoe@contoso.com", Mail: "jdoe@contoso.com"},
		},
		folders: map[string][]folderInfo{
			"": {
				{ID: "inbox", DisplayName: "Inbox", ItemCount: 100, SizeBytes: 1 << 30, HasChildren: true},
				{ID: "sent", DisplayName: "Sent Items", ItemCount: 40, SizeBytes: 200 << 20},
				{ID: "drafts", DisplayName: "Drafts"},
			},
			"inbox": {
				{ID: "projects", DisplayName: "Projects", ItemCount: 30, SizeBytes: 512 << 20},
			},
		},
		usage: usageCSV,
	}
}

func newTestDirectory(g graphAPI, p PolicyStore) *Directory {
	d := newDirectory(g, p)
	d.retry.BaseDelay = time.Millisecond
	return d
}

func TestParseUsageReport(t *testing.T) {
	rows, err := parseUsageReport([]byte(usageCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows["jdoe@contoso.com"]
	require.Equal(t, "JDoe@contoso.com", row.UserPrincipalName)
	require.EqualValues(t, 160, row.ItemCount)
	require.EqualValues(t, 1820327936, row.StorageUsed)
	require.EqualValues(t, -1, row.IssueWarning)
	require.EqualValues(t, 1073741824, row.ProhibitSend)
	require.EqualValues(t, -1, row.ProhibitSendReceive)

	_, err = parseUsageReport([]byte("a,b\n1,2\n"))
	require.Error(t, err)

	rows, err = parseUsageReport(nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestGetMailbox(t *testing.T) {
	d := newTestDirectory(newFake(), nil)

	m, err := d.GetMailbox(context.Background(), "jdoe@contoso.com")
	require.NoError(t, err)
	require.Equal(t, "u1", m.Identity)
	require.Equal(t, "contoso.com", m.Database)
	require.False(t, m.IssueWarningQuota.IsSet())
	require.Equal(t, quota.MB(1024), m.ProhibitSendQuota)
}

const concealedUsageCSV = `Report Refresh Date,User Principal Name,Display Name,Item Count,Storage Used (Byte),Issue Warning Quota (Byte),Prohibit Send Quota (Byte),Prohibit Send/Receive Quota (Byte)
2026-10-18,5E1F0C2B8A3D4E6F9A7B1C2D3E4F5A6B,5E1F0C2B8A3D4E6F9A7B1C2D3E4F5A6C,160,1820327936,,1073741824,
`

func TestGetMailboxConcealedUsageReport(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.DisableColors()
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	g := newFake()
	g.usage = concealedUsageCSV
	d := newTestDirectory(g, nil)

	m, err := d.GetMailbox(context.Background(), "jdoe@contoso.com")
	require.NoError(t, err)
	require.False(t, m.ProhibitSendQuota.IsSet())
	require.Contains(t, buf.String(), "Display concealed user, group, and site names in all reports")
}

func TestNamesConcealed(t *testing.T) {
	rows, err := parseUsageReport([]byte(usageCSV))
	require.NoError(t, err)
	require.False(t, namesConcealed(rows))

	rows, err = parseUsageReport([]byte(concealedUsageCSV))
	require.NoError(t, err)
	require.True(t, namesConcealed(rows))

	require.False(t, namesConcealed(nil))
}

func TestGetMailboxNotFound(t *testing.T) {
	d := newTestDirectory(newFake(), nil)

	_, err := d.GetMailbox(context.Background(), "ghost@contoso.com")
	require.ErrorIs(t, err, exchange.ErrMailboxNotFound)
}

func TestGetMailboxRetriesThrottling(t *testing.T) {
	g := newFake()
	g.throttleFor = 2
	d := newTestDirectory(g, nil)

	_, err := d.GetMailbox(context.Background(), "jdoe@contoso.com")
	require.NoError(t, err)
	require.Zero(t, g.throttleFor)
}

func TestGetMailboxOtherErrorsAreNotNotFound(t *testing.T) {
	g := newFake()
	g.userErr = &graphError{Status: http.StatusForbidden, Code: "Authorization_RequestDenied"}
	d := newTestDirectory(g, nil)

	_, err := d.GetMailbox(context.Background(), "jdoe@contoso.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, exchange.ErrMailboxNotFound)
}

func TestGetFolderStatistics(t *testing.T) {
	d := newTestDirectory(newFake(), nil)
	ctx := context.Background()

	m, err := d.GetMailbox(ctx, "jdoe@contoso.com")
	require.NoError(t, err)
	stats, err := d.GetFolderStatistics(ctx, m)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	byPath := make(map[string]exchange.FolderStatistic)
	for _, s := range stats {
		byPath[s.FolderPath] = s
	}
	inbox := byPath["/Inbox"]
	require.Equal(t, "Inbox", inbox.FolderType)
	require.EqualValues(t, 100, inbox.ItemsInFolder)
	require.EqualValues(t, 130, inbox.ItemsInFolderAndSubfolders)
	require.Equal(t, "1.5 GB (1,610,612,736 bytes)", inbox.FolderAndSubfolderSize)

	require.Equal(t, "User Created", byPath["/Inbox/Projects"].FolderType)
	require.Equal(t, "SentItems", byPath["/Sent Items"].FolderType)
	require.Equal(t, "0 B (0 bytes)", byPath["/Drafts"].FolderAndSubfolderSize)
}

func TestGetMailboxStatistics(t *testing.T) {
	g := newFake()
	d := newTestDirectory(g, nil)
	ctx := context.Background()

	m, err := d.GetMailbox(ctx, "jdoe@contoso.com")
	require.NoError(t, err)
	ms, err := d.GetMailboxStatistics(ctx, m)
	require.NoError(t, err)
	require.Equal(t, "1.695 GB (1,820,327,936 bytes)", ms.TotalItemSize)
	require.EqualValues(t, 160, ms.ItemCount)
	require.Equal(t, 1, g.usageCalls)

	_, err = d.GetMailboxStatistics(ctx, &exchange.Mailbox{Identity: "other"})
	require.ErrorIs(t, err, exchange.ErrMailboxNotFound)
}

func TestGetDatabaseDefaultsWithoutStore(t *testing.T) {
	d := newTestDirectory(newFake(), nil)

	_, err := d.GetDatabaseDefaults(context.Background(), "contoso.com")
	require.ErrorIs(t, err, exchange.ErrDatabaseNotFound)
}

func TestReportFromGraph(t *testing.T) {
	policies := fakePolicies{
		"contoso.com": {Name: "contoso.com", IssueWarningQuota: quota.MB(900)},
	}
	d := newTestDirectory(newFake(), policies)

	r, err := report.Generate(context.Background(), d, "jdoe@contoso.com")
	require.NoError(t, err)

	// Inbox counts its subfolder, as Exchange's FolderAndSubfolderSize does.
	require.Equal(t, 1536.0+512+200, r.TotalUsedMB)
	require.Equal(t, quota.MB(900), r.IssueWarning)
	require.Equal(t, quota.MB(1024), r.ProhibitSend)
	free, ok := r.FreeSpace.Value()
	require.True(t, ok)
	require.Equal(t, 1024-2248.0, free)
	require.Equal(t, "/Inbox", r.Folders[0].Path)
}

func TestPolicyName(t *testing.T) {
	require.Equal(t, "contoso.com", policyName("JDoe@Contoso.com"))
	require.Equal(t, "", policyName("jdoe"))
}

func TestGraphErrorClassification(t *testing.T) {
	require.True(t, (&graphError{Status: http.StatusServiceUnavailable}).Throttled())
	require.True(t, (&graphError{Code: "ErrorItemNotFound"}).NotFound())
	require.False(t, (&graphError{Status: http.StatusForbidden}).NotFound())
	require.False(t, isThrottled(errors.New("plain")))
	require.Nil(t, handleGraphError(nil))
}
