package model

import "time"

// Actor is the authenticated caller as established by the upstream
// authentication layer.
type Actor struct {
	ID   string
	Role Role
}

// UnlockGrant is returned by a successful unlock: a signed capability token
// and the instant it stops being valid.
type UnlockGrant struct {
	Token     string
	ExpiresAt time.Time
}

// UnlockClaims are the identifiers embedded in a validated unlock token.
type UnlockClaims struct {
	TokenID      string
	CredentialID string
	ActorID      string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}
