package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AccessLogStore = (*AccessLogRepo)(nil)

// AccessLogRepo is the SQLite implementation of the AccessLogStore port
// interface. The table rejects UPDATE and DELETE via triggers.
type AccessLogRepo struct {
	db *DB
}

// NewAccessLogRepo creates a new AccessLogRepo backed by the given DB.
func NewAccessLogRepo(db *DB) *AccessLogRepo {
	return &AccessLogRepo{db: db}
}

// Append inserts one access log entry. The write goes through the single
// writer connection and is durable once ExecContext returns.
func (r *AccessLogRepo) Append(ctx context.Context, entry model.AccessLogEntry) error {
	const query = `INSERT INTO credential_access_logs (id, credential_id, viewed_by, viewed_at, reason, source_ip)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		entry.ID, entry.CredentialID, entry.ViewedBy, formatTime(entry.ViewedAt), entry.Reason, entry.SourceIP,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
			return fmt.Errorf("append access log for credential %q: %w", entry.CredentialID, model.ErrNotFound)
		}
		return fmt.Errorf("append access log for credential %q: %w", entry.CredentialID, err)
	}

	return nil
}

// ListByCredential returns up to limit entries for a credential, newest first.
func (r *AccessLogRepo) ListByCredential(ctx context.Context, credentialID string, limit int) ([]model.AccessLogEntry, error) {
	const query = `SELECT id, credential_id, viewed_by, viewed_at, reason, source_ip
		FROM credential_access_logs
		WHERE credential_id = ?
		ORDER BY viewed_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, credentialID, limit)
	if err != nil {
		return nil, fmt.Errorf("list access log for credential %q: %w", credentialID, err)
	}
	defer rows.Close()

	entries := []model.AccessLogEntry{}
	for rows.Next() {
		var entry model.AccessLogEntry
		var viewedAt string
		if err := rows.Scan(&entry.ID, &entry.CredentialID, &entry.ViewedBy, &viewedAt, &entry.Reason, &entry.SourceIP); err != nil {
			return nil, fmt.Errorf("scan access log entry: %w", err)
		}

		entry.ViewedAt, err = parseTime(viewedAt)
		if err != nil {
			return nil, fmt.Errorf("parse viewed_at for access log entry %q: %w", entry.ID, err)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access log: %w", err)
	}

	return entries, nil
}
