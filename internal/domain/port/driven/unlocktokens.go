package driven

import "github.com/ericfisherdev/credvault/internal/domain/model"

// UnlockTokenService issues and validates the short-lived capability tokens
// that gate plaintext disclosure.
type UnlockTokenService interface {
	// Issue signs a token binding credentialID and actorID.
	Issue(credentialID, actorID string) (model.UnlockGrant, error)

	// Validate checks signature, token type, expiry and the configured
	// issuer and audience. Any failure wraps model.ErrUnauthorized. It does
	// not compare the embedded identifiers against a request; callers do that.
	Validate(token string) (model.UnlockClaims, error)
}
