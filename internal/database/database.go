package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FranLegon/mailbox-usage-report/internal/exchange"
	"github.com/FranLegon/mailbox-usage-report/internal/quota"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPolicy applies to mailboxes whose own policy is not stored.
const DefaultPolicy = "default"

// DB stores organization-level quota defaults, keyed by policy name. Graph
// does not expose mailbox database defaults, so they are kept here.
type DB struct {
	conn *sql.DB
}

// Policy is one row of quota defaults. Unset quotas are stored as NULL.
type Policy struct {
	Name                string
	IssueWarning        quota.Setting
	ProhibitSend        quota.Setting
	ProhibitSendReceive quota.Setting
	UpdatedAt           time.Time
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn builds a SQLite URI for path. Characters with a meaning in URIs are
// percent-encoded so that they stay part of the file name.
func dsn(path string) string {
	return "file:" + uriEscaper.Replace(filepath.ToSlash(path)) + "?_busy_timeout=5000"
}

// Open opens (creating if needed) the policy database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open policy database %s: %w", path, err)
	}
	db := &DB{conn: conn}
	if err := db.Initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize policy database: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Initialize creates the database schema
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quota_policies (
		name TEXT PRIMARY KEY COLLATE NOCASE,
		issue_warning_mb REAL,
		prohibit_send_mb REAL,
		prohibit_send_receive_mb REAL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func toNull(s quota.Setting) sql.NullFloat64 {
	v, ok := s.Value()
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func fromNull(n sql.NullFloat64) quota.Setting {
	if !n.Valid {
		return quota.Unset()
	}
	return quota.MB(n.Float64)
}

// SetPolicy inserts or replaces a policy.
func (db *DB) SetPolicy(ctx context.Context, p Policy) error {
	if p.Name == "" {
		return errors.New("policy name is required")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO quota_policies (name, issue_warning_mb, prohibit_send_mb, prohibit_send_receive_mb, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			issue_warning_mb = excluded.issue_warning_mb,
			prohibit_send_mb = excluded.prohibit_send_mb,
			prohibit_send_receive_mb = excluded.prohibit_send_receive_mb,
			updated_at = excluded.updated_at`,
		p.Name, toNull(p.IssueWarning), toNull(p.ProhibitSend), toNull(p.ProhibitSendReceive), time.Now().Unix())
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*Policy, error) {
	var (
		p                    Policy
		warn, send, sendRecv sql.NullFloat64
		updated              int64
	)
	if err := row.Scan(&p.Name, &warn, &send, &sendRecv, &updated); err != nil {
		return nil, err
	}
	p.IssueWarning = fromNull(warn)
	p.ProhibitSend = fromNull(send)
	p.ProhibitSendReceive = fromNull(sendRecv)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

// GetPolicy returns the named policy, or exchange.ErrDatabaseNotFound.
func (db *DB) GetPolicy(ctx context.Context, name string) (*Policy, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT name, issue_warning_mb, prohibit_send_mb, prohibit_send_receive_mb, updated_at
		FROM quota_policies WHERE name = ?`, name)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no quota policy %q", exchange.ErrDatabaseNotFound, name)
	}
	return p, err
}

// ListPolicies returns all policies ordered by name.
func (db *DB) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT name, issue_warning_mb, prohibit_send_mb, prohibit_send_receive_mb, updated_at
		FROM quota_policies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// RemovePolicy deletes the named policy.
func (db *DB) RemovePolicy(ctx context.Context, name string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM quota_policies WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no quota policy %q", exchange.ErrDatabaseNotFound, name)
	}
	return nil
}

// Defaults resolves the defaults for name, falling back to DefaultPolicy.
func (db *DB) Defaults(ctx context.Context, name string) (*exchange.DatabaseDefaults, error) {
	p, err := db.GetPolicy(ctx, name)
	if errors.Is(err, exchange.ErrDatabaseNotFound) && name != DefaultPolicy {
		p, err = db.GetPolicy(ctx, DefaultPolicy)
	}
	if err != nil {
		return nil, err
	}
	return &exchange.DatabaseDefaults{
		Name:                     p.Name,
		IssueWarningQuota:        p.IssueWarning,
		ProhibitSendQuota:        p.ProhibitSend,
		ProhibitSendReceiveQuota: p.ProhibitSendReceive,
	}, nil
}
