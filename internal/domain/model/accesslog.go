package model

import "time"

// AccessLogEntry records one successful plaintext disclosure. Entries are
// append-only: they are never mutated or deleted.
type AccessLogEntry struct {
	ID           string
	CredentialID string
	ViewedBy     string // Actor id carried by the validated unlock token.
	ViewedAt     time.Time
	Reason       string
	SourceIP     string
}
