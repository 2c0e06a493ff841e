package driven

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// AccessLogStore defines the driven port for the append-only disclosure log.
type AccessLogStore interface {
	// Append durably records one disclosure.
	Append(ctx context.Context, entry model.AccessLogEntry) error

	// ListByCredential returns up to limit entries for a credential, newest first.
	ListByCredential(ctx context.Context, credentialID string, limit int) ([]model.AccessLogEntry, error)
}
