package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// It stores the envelope blob as raw bytes and never sees plaintext.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `id, scope_type, scope_id, kind, username, secret_ciphertext, url, notes,
	last_rotated_at, is_archived, version, created_by, created_at, updated_by, updated_at`

// Create inserts a new credential. A duplicate id wraps model.ErrConflict.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) error {
	if len(cred.SecretCiphertext) == 0 {
		return fmt.Errorf("create credential %q: ciphertext is empty: %w", cred.ID, model.ErrValidation)
	}

	version := cred.Version
	if version == 0 {
		version = 1
	}

	const query = `INSERT INTO credentials (` + credentialColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)`

	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.ID, string(cred.ScopeType), cred.ScopeID, string(cred.Kind), cred.Username,
		cred.SecretCiphertext, cred.URL, cred.Notes,
		formatTime(cred.LastRotatedAt), cred.IsArchived, version,
		cred.CreatedBy, formatTime(cred.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create credential %q: %w", cred.ID, model.ErrConflict)
		}
		return fmt.Errorf("create credential %q: %w", cred.ID, err)
	}

	return nil
}

// GetByID returns the full credential record including ciphertext.
func (r *CredentialRepo) GetByID(ctx context.Context, id string) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get credential %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", id, err)
	}

	return cred, nil
}

// ListByScope returns credential metadata for a scope ordered by kind, then
// username, using byte-wise comparison. The ciphertext column is not selected.
func (r *CredentialRepo) ListByScope(ctx context.Context, scopeType model.ScopeType, scopeID string, includeArchived bool) ([]model.CredentialMeta, error) {
	const query = `SELECT id, scope_type, scope_id, kind, username, url, last_rotated_at,
			is_archived, version, created_at, updated_at
		FROM credentials
		WHERE scope_type = ? AND scope_id = ? AND (? OR is_archived = 0)
		ORDER BY kind, username, id`

	rows, err := r.db.Reader.QueryContext(ctx, query, string(scopeType), scopeID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list credentials for %s %q: %w", scopeType, scopeID, err)
	}
	defer rows.Close()

	metas := []model.CredentialMeta{}
	for rows.Next() {
		var (
			meta                   model.CredentialMeta
			scope, kind            string
			lastRotated, createdAt string
			updatedAt              sql.NullString
		)
		if err := rows.Scan(&meta.ID, &scope, &meta.ScopeID, &kind, &meta.Username, &meta.URL,
			&lastRotated, &meta.IsArchived, &meta.Version, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential meta: %w", err)
		}
		meta.ScopeType = model.ScopeType(scope)
		meta.Kind = model.Kind(kind)

		if meta.LastRotatedAt, err = parseTime(lastRotated); err != nil {
			return nil, fmt.Errorf("parse last_rotated_at for credential %q: %w", meta.ID, err)
		}
		stamp := createdAt
		if updatedAt.Valid {
			stamp = updatedAt.String
		}
		if meta.UpdatedAt, err = parseTime(stamp); err != nil {
			return nil, fmt.Errorf("parse updated_at for credential %q: %w", meta.ID, err)
		}

		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return metas, nil
}

// Update loads the credential inside a write transaction, applies mutate and
// persists the mutable columns. The stored version is incremented on every
// successful update. If mutate fails the transaction is rolled back and its
// error returned as-is.
func (r *CredentialRepo) Update(ctx context.Context, id string, mutate func(*model.Credential) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const selectQuery = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`
	cred, err := scanCredential(tx.QueryRowContext(ctx, selectQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update credential %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load credential %q: %w", id, err)
	}

	loadedVersion := cred.Version
	if err := mutate(cred); err != nil {
		return err
	}
	if len(cred.SecretCiphertext) == 0 {
		return fmt.Errorf("update credential %q: ciphertext is empty: %w", id, model.ErrValidation)
	}

	var updatedAt sql.NullString
	if cred.UpdatedAt != nil {
		updatedAt = sql.NullString{String: formatTime(*cred.UpdatedAt), Valid: true}
	}
	var updatedBy sql.NullString
	if cred.UpdatedBy != "" {
		updatedBy = sql.NullString{String: cred.UpdatedBy, Valid: true}
	}

	const updateQuery = `UPDATE credentials SET
			username = ?, secret_ciphertext = ?, url = ?, notes = ?, last_rotated_at = ?,
			is_archived = ?, version = version + 1, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?`

	result, err := tx.ExecContext(ctx, updateQuery,
		cred.Username, cred.SecretCiphertext, cred.URL, cred.Notes, formatTime(cred.LastRotatedAt),
		cred.IsArchived, updatedBy, updatedAt,
		id, loadedVersion,
	)
	if err != nil {
		return fmt.Errorf("update credential %q: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update credential %q: %w", id, model.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credential update %q: %w", id, err)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*model.Credential, error) {
	var (
		cred                   model.Credential
		scope, kind            string
		lastRotated, createdAt string
		updatedBy, updatedAt   sql.NullString
	)

	err := s.Scan(&cred.ID, &scope, &cred.ScopeID, &kind, &cred.Username, &cred.SecretCiphertext,
		&cred.URL, &cred.Notes, &lastRotated, &cred.IsArchived, &cred.Version,
		&cred.CreatedBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		return nil, err
	}
	cred.ScopeType = model.ScopeType(scope)
	cred.Kind = model.Kind(kind)
	cred.UpdatedBy = updatedBy.String

	if cred.LastRotatedAt, err = parseTime(lastRotated); err != nil {
		return nil, fmt.Errorf("parse last_rotated_at: %w", err)
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if updatedAt.Valid {
		t, err := parseTime(updatedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		cred.UpdatedAt = &t
	}

	return &cred, nil
}
