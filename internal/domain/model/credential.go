package model

import "time"

// Credential is a third-party secret bound to exactly one scope. The secret is
// only ever held as SecretCiphertext, the opaque envelope blob produced by the
// SecretCipher port. Username, URL and Notes are optional plaintext metadata;
// an empty string means absent.
type Credential struct {
	ID               string
	ScopeType        ScopeType
	ScopeID          string
	Kind             Kind
	Username         string
	SecretCiphertext []byte
	URL              string
	Notes            string
	LastRotatedAt    time.Time
	IsArchived       bool
	Version          int
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedBy        string     // Empty until the first update.
	UpdatedAt        *time.Time // Nil until the first update.
}

// Meta returns the non-secret view of the credential.
func (c Credential) Meta() CredentialMeta {
	updatedAt := c.CreatedAt
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return CredentialMeta{
		ID:            c.ID,
		ScopeType:     c.ScopeType,
		ScopeID:       c.ScopeID,
		Kind:          c.Kind,
		Username:      c.Username,
		URL:           c.URL,
		LastRotatedAt: c.LastRotatedAt,
		IsArchived:    c.IsArchived,
		Version:       c.Version,
		UpdatedAt:     updatedAt,
	}
}

// CredentialMeta is the listing view of a credential. It carries no secret
// material, not even ciphertext.
type CredentialMeta struct {
	ID            string
	ScopeType     ScopeType
	ScopeID       string
	Kind          Kind
	Username      string
	URL           string
	LastRotatedAt time.Time
	IsArchived    bool
	Version       int
	UpdatedAt     time.Time // UpdatedAt of the record, or CreatedAt if never updated.
}

// RevealedCredential is the result of a successful disclosure. It is the only
// type in the domain that carries a plaintext secret.
type RevealedCredential struct {
	ID       string
	Kind     Kind
	Username string
	Secret   string
	URL      string
	Notes    string
}
