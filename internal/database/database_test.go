package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "policies.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetAndGetPolicy(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "contoso.com", IssueWarning: quota.MB(900)}))

	p, err := db.GetPolicy(ctx, "CONTOSO.com")
	require.NoError(t, err)
	require.Equal(t, "contoso.com", p.Name)
	require.Equal(t, quota.MB(900), p.IssueWarning)
	require.False(t, p.ProhibitSend.IsSet())
	require.False(t, p.UpdatedAt.IsZero())
}

func TestSetPolicyReplaces(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "p", IssueWarning: quota.MB(1), ProhibitSend: quota.MB(2)}))
	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "p", ProhibitSend: quota.MB(3)}))

	p, err := db.GetPolicy(ctx, "p")
	require.NoError(t, err)
	require.False(t, p.IssueWarning.IsSet())
	require.Equal(t, quota.MB(3), p.ProhibitSend)

	require.Error(t, db.SetPolicy(ctx, Policy{}))
}

func TestListAndRemove(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "b"}))
	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "a"}))

	policies, err := db.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	require.Equal(t, "a", policies[0].Name)

	require.NoError(t, db.RemovePolicy(ctx, "a"))
	require.ErrorIs(t, db.RemovePolicy(ctx, "a"), exchange.ErrDatabaseNotFound)

	_, err = db.GetPolicy(ctx, "a")
	require.ErrorIs(t, err, exchange.ErrDatabaseNotFound)
}

func TestDefaultsFallback(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	_, err := db.Defaults(ctx, "contoso.com")
	require.ErrorIs(t, err, exchange.ErrDatabaseNotFound)

	require.NoError(t, db.SetPolicy(ctx, Policy{Name: DefaultPolicy, ProhibitSend: quota.MB(2048)}))
	d, err := db.Defaults(ctx, "contoso.com")
	require.NoError(t, err)
	require.Equal(t, DefaultPolicy, d.Name)
	require.Equal(t, quota.MB(2048), d.ProhibitSendQuota)

	require.NoError(t, db.SetPolicy(ctx, Policy{Name: "contoso.com", IssueWarning: quota.MB(900)}))
	d, err = db.Defaults(ctx, "contoso.com")
	require.NoError(t, err)
	require.Equal(t, quota.MB(900), d.IssueWarningQuota)
	require.False(t, d.ProhibitSendQuota.IsSet())
}

func TestDSNEscapesURICharacters(t *testing.T) {
	require.Equal(t, "file:/tmp/a%3fb%23c%25d/policies.db?_busy_timeout=5000", dsn("/tmp/a?b#c%d/policies.db"))
}

func TestOpenPathWithURICharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "q?x#1%")
	path := filepath.Join(dir, "policies.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetPolicy(context.Background(), Policy{Name: "default", ProhibitSend: quota.MB(1024)}))
	require.NoError(t, db.Close())

	require.FileExists(t, path)

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	p, err := db.GetPolicy(context.Background(), "default")
	require.NoError(t, err)
	require.Equal(t, quota.MB(1024), p.ProhibitSend)
}
