package driven

import (
	"context"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// ScopeDirectory answers whether a project or client exists in the host
// system and is not soft-deleted.
type ScopeDirectory interface {
	Exists(ctx context.Context, scopeType model.ScopeType, id string) (bool, error)
}
