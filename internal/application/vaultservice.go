package application

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const (
	// DefaultAccessLogLimit is used when AccessLog is called with limit <= 0.
	DefaultAccessLogLimit = 50
	// MaxAccessLogLimit caps a single AccessLog page.
	MaxAccessLogLimit = 500

	maxReasonLength = 500
)

// CreateCredentialInput carries the fields for a new credential. Secret is
// encrypted before anything is persisted; an empty secret is allowed.
type CreateCredentialInput struct {
	ScopeType model.ScopeType
	ScopeID   string
	Kind      model.Kind
	Username  string
	Secret    string
	URL       string
	Notes     string
}

// UpdateCredentialInput carries optional field changes. A nil field is left
// untouched. A blank Secret does not rotate the stored secret.
// ExpectedVersion, when set, must equal the stored version.
type UpdateCredentialInput struct {
	Username        *string
	Secret          *string
	URL             *string
	Notes           *string
	IsArchived      *bool
	ExpectedVersion *int
}

// RevealRequest identifies the credential to disclose and the unlock token
// authorizing it. Reason and SourceIP are recorded in the access log.
type RevealRequest struct {
	CredentialID string
	Token        string
	Reason       string
	SourceIP     string
}

// VaultService orchestrates credential creation, listing, unlock, disclosure
// and update. Role gates are enforced by the driving adapter; this service
// enforces the passphrase gate and the token-to-credential binding.
type VaultService struct {
	credentials driven.CredentialStore
	accessLog   driven.AccessLogStore
	scopes      driven.ScopeDirectory
	cipher      driven.SecretCipher
	tokens      driven.UnlockTokenService
	passphrase  [sha256.Size]byte
	clock       clock.Clock
	logger      *slog.Logger
}

// NewVaultService creates a new VaultService with the required dependencies.
// Only a digest of the passphrase is retained.
func NewVaultService(
	credentials driven.CredentialStore,
	accessLog driven.AccessLogStore,
	scopes driven.ScopeDirectory,
	cipher driven.SecretCipher,
	tokens driven.UnlockTokenService,
	passphrase string,
	clk clock.Clock,
	logger *slog.Logger,
) (*VaultService, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("vault service: unlock passphrase is empty: %w", model.ErrConfiguration)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &VaultService{
		credentials: credentials,
		accessLog:   accessLog,
		scopes:      scopes,
		cipher:      cipher,
		tokens:      tokens,
		passphrase:  sha256.Sum256([]byte(passphrase)),
		clock:       clk,
		logger:      logger,
	}, nil
}

// Create validates the scope, encrypts the secret and persists a new
// credential. It returns the new credential's id only.
func (s *VaultService) Create(ctx context.Context, in CreateCredentialInput, actor model.Actor) (string, error) {
	if actor.ID == "" {
		return "", fmt.Errorf("create credential: no actor: %w", model.ErrUnauthorized)
	}
	if !in.ScopeType.Valid() {
		return "", fmt.Errorf("create credential: scope type must be Project or Client, got %q: %w", in.ScopeType, model.ErrValidation)
	}
	if strings.TrimSpace(in.ScopeID) == "" {
		return "", fmt.Errorf("create credential: scope id is required: %w", model.ErrValidation)
	}
	kind := model.Kind(strings.TrimSpace(string(in.Kind)))
	if kind == "" {
		return "", fmt.Errorf("create credential: kind is required: %w", model.ErrValidation)
	}

	exists, err := s.scopes.Exists(ctx, in.ScopeType, in.ScopeID)
	if err != nil {
		return "", fmt.Errorf("create credential: check scope: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("create credential: %s %q does not exist: %w", in.ScopeType, in.ScopeID, model.ErrValidation)
	}

	ciphertext, err := s.seal(in.Secret)
	if err != nil {
		return "", fmt.Errorf("create credential: %w", err)
	}

	now := s.clock.Now().UTC()
	cred := model.Credential{
		ID:               uuid.NewString(),
		ScopeType:        in.ScopeType,
		ScopeID:          in.ScopeID,
		Kind:             kind,
		Username:         in.Username,
		SecretCiphertext: ciphertext,
		URL:              in.URL,
		Notes:            in.Notes,
		LastRotatedAt:    now,
		Version:          1,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
	}

	if err := s.credentials.Create(ctx, cred); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "credential created",
		"credential_id", cred.ID, "scope_type", cred.ScopeType, "scope_id", cred.ScopeID, "kind", cred.Kind)

	return cred.ID, nil
}

// ListMeta returns the metadata of every credential bound to the scope,
// ordered by kind then username. Nothing is decrypted.
func (s *VaultService) ListMeta(ctx context.Context, scopeType model.ScopeType, scopeID string, includeArchived bool) ([]model.CredentialMeta, error) {
	if !scopeType.Valid() {
		return nil, fmt.Errorf("list credentials: scope type must be Project or Client, got %q: %w", scopeType, model.ErrValidation)
	}

	return s.credentials.ListByScope(ctx, scopeType, scopeID, includeArchived)
}

// GetMeta returns the metadata of one credential.
func (s *VaultService) GetMeta(ctx context.Context, id string) (model.CredentialMeta, error) {
	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return model.CredentialMeta{}, err
	}

	return cred.Meta(), nil
}

// Unlock checks the shared passphrase and, on success, issues a token that
// lets actor disclose credential id until the returned expiry.
func (s *VaultService) Unlock(ctx context.Context, id, passphrase string, actor model.Actor) (model.UnlockGrant, error) {
	if actor.ID == "" {
		return model.UnlockGrant{}, fmt.Errorf("unlock credential: no actor: %w", model.ErrUnauthorized)
	}

	if _, err := s.credentials.GetByID(ctx, id); err != nil {
		return model.UnlockGrant{}, err
	}

	if !s.passphraseMatches(passphrase) {
		s.logger.WarnContext(ctx, "unlock denied: passphrase mismatch", "credential_id", id)
		return model.UnlockGrant{}, fmt.Errorf("unlock credential %q: passphrase mismatch: %w", id, model.ErrUnauthorized)
	}

	grant, err := s.tokens.Issue(id, actor.ID)
	if err != nil {
		return model.UnlockGrant{}, fmt.Errorf("unlock credential %q: %w", id, err)
	}

	s.logger.InfoContext(ctx, "credential unlocked", "credential_id", id, "expires_at", grant.ExpiresAt)

	return grant, nil
}

// Reveal validates the unlock token against the requested credential,
// decrypts the secret and records the disclosure. The access log entry is
// written before plaintext is returned; if it cannot be written the reveal
// fails and no plaintext leaves the service.
func (s *VaultService) Reveal(ctx context.Context, req RevealRequest) (model.RevealedCredential, error) {
	claims, err := s.authorize(ctx, req.CredentialID, req.Token)
	if err != nil {
		return model.RevealedCredential{}, err
	}

	cred, err := s.credentials.GetByID(ctx, req.CredentialID)
	if err != nil {
		return model.RevealedCredential{}, err
	}

	plaintext, err := s.cipher.Decrypt(cred.SecretCiphertext)
	if err != nil {
		if errors.Is(err, model.ErrIntegrity) {
			s.logger.ErrorContext(ctx, "credential ciphertext failed authentication", "credential_id", cred.ID)
		}
		return model.RevealedCredential{}, fmt.Errorf("reveal credential %q: %w", cred.ID, err)
	}
	defer memguard.WipeBytes(plaintext)

	entry := model.AccessLogEntry{
		ID:           uuid.NewString(),
		CredentialID: cred.ID,
		ViewedBy:     claims.ActorID,
		ViewedAt:     s.clock.Now().UTC(),
		Reason:       truncate(strings.TrimSpace(req.Reason), maxReasonLength),
		SourceIP:     req.SourceIP,
	}
	if err := s.accessLog.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "access log append failed, withholding secret",
			"credential_id", cred.ID, "error", err)
		return model.RevealedCredential{}, fmt.Errorf("reveal credential %q: record access: %w", cred.ID, err)
	}

	s.logger.InfoContext(ctx, "credential revealed",
		"credential_id", cred.ID, "viewed_by", claims.ActorID, "token_id", claims.TokenID)

	return model.RevealedCredential{
		ID:       cred.ID,
		Kind:     cred.Kind,
		Username: cred.Username,
		Secret:   string(plaintext),
		URL:      cred.URL,
		Notes:    cred.Notes,
	}, nil
}

// Update validates the unlock token exactly as Reveal does, then applies the
// requested field changes. A non-blank Secret is re-encrypted and refreshes
// LastRotatedAt. UpdatedBy is always the token's actor.
func (s *VaultService) Update(ctx context.Context, id, token string, in UpdateCredentialInput) error {
	claims, err := s.authorize(ctx, id, token)
	if err != nil {
		return err
	}

	var rotated []byte
	if in.Secret != nil && strings.TrimSpace(*in.Secret) != "" {
		rotated, err = s.seal(*in.Secret)
		if err != nil {
			return fmt.Errorf("update credential %q: %w", id, err)
		}
	}

	now := s.clock.Now().UTC()
	err = s.credentials.Update(ctx, id, func(c *model.Credential) error {
		if in.ExpectedVersion != nil && *in.ExpectedVersion != c.Version {
			return fmt.Errorf("update credential %q: expected version %d, stored version %d: %w",
				id, *in.ExpectedVersion, c.Version, model.ErrConflict)
		}
		if in.Username != nil {
			c.Username = *in.Username
		}
		if in.URL != nil {
			c.URL = *in.URL
		}
		if in.Notes != nil {
			c.Notes = *in.Notes
		}
		if in.IsArchived != nil {
			c.IsArchived = *in.IsArchived
		}
		if rotated != nil {
			c.SecretCiphertext = rotated
			c.LastRotatedAt = now
		}
		c.UpdatedBy = claims.ActorID
		c.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "credential updated",
		"credential_id", id, "updated_by", claims.ActorID, "rotated", rotated != nil)

	return nil
}

// AccessLog returns the newest disclosure records for a credential. A limit
// of zero or less means DefaultAccessLogLimit; larger limits are capped at
// MaxAccessLogLimit.
func (s *VaultService) AccessLog(ctx context.Context, id string, limit int) ([]model.AccessLogEntry, error) {
	if _, err := s.credentials.GetByID(ctx, id); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultAccessLogLimit
	case limit > MaxAccessLogLimit:
		limit = MaxAccessLogLimit
	}

	return s.accessLog.ListByCredential(ctx, id, limit)
}

// CheckUnlock reports whether token currently authorizes access to credential
// id. Callers use it to reject a request before parsing its payload; Reveal
// and Update still validate the token themselves.
func (s *VaultService) CheckUnlock(ctx context.Context, id, token string) error {
	_, err := s.authorize(ctx, id, token)
	return err
}

// authorize validates token and checks it was issued for credential id.
func (s *VaultService) authorize(ctx context.Context, id, token string) (model.UnlockClaims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.WarnContext(ctx, "unlock token rejected", "credential_id", id, "error", err)
		return model.UnlockClaims{}, err
	}

	if claims.CredentialID != id {
		s.logger.WarnContext(ctx, "unlock token bound to another credential",
			"credential_id", id, "token_credential_id", claims.CredentialID, "token_id", claims.TokenID)
		return model.UnlockClaims{}, fmt.Errorf("unlock token was issued for a different credential: %w", model.ErrUnauthorized)
	}

	return claims, nil
}

func (s *VaultService) passphraseMatches(candidate string) bool {
	sum := sha256.Sum256([]byte(candidate))
	defer memguard.WipeBytes(sum[:])
	return subtle.ConstantTimeCompare(sum[:], s.passphrase[:]) == 1
}

// seal encrypts secret and wipes the intermediate byte copy.
func (s *VaultService) seal(secret string) ([]byte, error) {
	buf := []byte(secret)
	defer memguard.WipeBytes(buf)

	return s.cipher.Encrypt(buf)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
