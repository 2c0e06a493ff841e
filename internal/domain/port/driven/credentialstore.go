package driven

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// CredentialStore defines the driven port for credential persistence. The
// store never sees plaintext secrets; it persists whatever ciphertext the
// caller hands it.
type CredentialStore interface {
	// Create inserts a new credential record. The caller assigns the ID.
	Create(ctx context.Context, cred model.Credential) error

	// GetByID returns the full record including ciphertext. Returns an error
	// wrapping model.ErrNotFound if the id is unknown.
	GetByID(ctx context.Context, id string) (*model.Credential, error)

	// ListByScope returns metadata for credentials bound to the given scope,
	// ordered by kind then username. Archived records are excluded unless
	// includeArchived is true.
	ListByScope(ctx context.Context, scopeType model.ScopeType, scopeID string, includeArchived bool) ([]model.CredentialMeta, error)

	// Update loads the record, applies mutate, and persists the result as a
	// single atomic step. If mutate returns an error nothing is written and
	// that error is returned unchanged.
	Update(ctx context.Context, id string, mutate func(*model.Credential) error) error
}
