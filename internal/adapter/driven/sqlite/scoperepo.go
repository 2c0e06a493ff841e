package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ScopeDirectory = (*ScopeRepo)(nil)

// ScopeRepo is the local scope registry: the projects and clients tables kept
// in sync by the host system. It serves as the ScopeDirectory when no host
// API is configured.
type ScopeRepo struct {
	db *DB
}

// NewScopeRepo creates a new ScopeRepo backed by the given DB.
func NewScopeRepo(db *DB) *ScopeRepo {
	return &ScopeRepo{db: db}
}

func scopeTable(scopeType model.ScopeType) (string, error) {
	switch scopeType {
	case model.ScopeProject:
		return "projects", nil
	case model.ScopeClient:
		return "clients", nil
	default:
		return "", fmt.Errorf("unknown scope type %q: %w", scopeType, model.ErrValidation)
	}
}

// Exists reports whether the scope is registered and not soft-deleted.
func (r *ScopeRepo) Exists(ctx context.Context, scopeType model.ScopeType, id string) (bool, error) {
	table, err := scopeTable(scopeType)
	if err != nil {
		return false, err
	}

	query := `SELECT is_deleted FROM ` + table + ` WHERE id = ?`
	var deleted bool
	err = r.db.Reader.QueryRowContext(ctx, query, id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %q: %w", scopeType, id, err)
	}

	return !deleted, nil
}

// Register inserts or revives a scope entry.
func (r *ScopeRepo) Register(ctx context.Context, scopeType model.ScopeType, id, name string) error {
	table, err := scopeTable(scopeType)
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("register %s: id is required: %w", scopeType, model.ErrValidation)
	}

	query := `INSERT INTO ` + table + ` (id, name, is_deleted, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_deleted = 0, updated_at = excluded.updated_at`

	if _, err := r.db.Writer.ExecContext(ctx, query, id, name, formatTime(time.Now())); err != nil {
		return fmt.Errorf("register %s %q: %w", scopeType, id, err)
	}

	return nil
}

// MarkDeleted soft-deletes a scope entry. Existing credentials bound to it
// are left untouched.
func (r *ScopeRepo) MarkDeleted(ctx context.Context, scopeType model.ScopeType, id string) error {
	table, err := scopeTable(scopeType)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET is_deleted = 1, updated_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", scopeType, id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete %s %q: %w", scopeType, id, model.ErrNotFound)
	}

	return nil
}
