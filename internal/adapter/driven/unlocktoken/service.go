// Package unlocktoken issues and validates the HS256-signed capability tokens
// that authorize disclosure of a single credential for a short window.
package unlocktoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const (
	// Lifetime is how long an unlock token stays valid after issue.
	Lifetime = 10 * time.Minute

	// Purpose is the value of the typ claim. It keeps unlock tokens from being
	// confused with session tokens signed by the same key.
	Purpose = "cred-unlock"

	claimType       = "typ"
	claimCredential = "cid"
	claimActor      = "uid"
)

// Compile-time interface satisfaction check.
var _ driven.UnlockTokenService = (*Service)(nil)

// Config holds the signing material shared with the host authentication layer.
// Issuer and Audience are optional; when set they are stamped on every token
// and required on validation.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

// Service is the JWT implementation of the UnlockTokenService port.
type Service struct {
	key      []byte
	issuer   string
	audience string
	clock    clock.Clock
}

// NewService creates a Service. The signing key is copied so later mutation
// of cfg.SigningKey has no effect.
func NewService(cfg Config, clk clock.Clock) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("unlock token service: signing key is empty: %w", model.ErrConfiguration)
	}
	if clk == nil {
		clk = clock.WallClock
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &Service{
		key:      key,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    clk,
	}, nil
}

// Issue signs a token allowing actorID to disclose credentialID until
// issued-at plus Lifetime.
func (s *Service) Issue(credentialID, actorID string) (model.UnlockGrant, error) {
	if credentialID == "" || actorID == "" {
		return model.UnlockGrant{}, fmt.Errorf("issue unlock token: credential and actor are required: %w", model.ErrValidation)
	}

	// NumericDate has second precision; truncating keeps ExpiresAt equal to
	// what the token actually carries.
	issuedAt := s.clock.Now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(Lifetime)

	builder := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		IssuedAt(issuedAt).
		Expiration(expiresAt).
		Claim(claimType, Purpose).
		Claim(claimCredential, credentialID).
		Claim(claimActor, actorID)
	if s.issuer != "" {
		builder = builder.Issuer(s.issuer)
	}
	if s.audience != "" {
		builder = builder.Audience([]string{s.audience})
	}

	tok, err := builder.Build()
	if err != nil {
		return model.UnlockGrant{}, fmt.Errorf("build unlock token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return model.UnlockGrant{}, fmt.Errorf("sign unlock token: %w", err)
	}

	return model.UnlockGrant{Token: string(signed), ExpiresAt: expiresAt}, nil
}

// Validate verifies the signature, purpose, expiry and the configured issuer
// and audience, then returns the embedded identifiers. Expiry is evaluated
// against the injected clock with no leeway.
func (s *Service) Validate(token string) (model.UnlockClaims, error) {
	if token == "" {
		return model.UnlockClaims{}, fmt.Errorf("validate unlock token: token is empty: %w", model.ErrUnauthorized)
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithClock(s.clock),
		jwt.WithAcceptableSkew(0),
		jwt.WithClaimValue(claimType, Purpose),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return model.UnlockClaims{}, fmt.Errorf("validate unlock token: %s: %w", describe(err), model.ErrUnauthorized)
	}

	credentialID, ok := stringClaim(tok, claimCredential)
	if !ok {
		return model.UnlockClaims{}, fmt.Errorf("validate unlock token: missing %s claim: %w", claimCredential, model.ErrUnauthorized)
	}
	actorID, ok := stringClaim(tok, claimActor)
	if !ok {
		return model.UnlockClaims{}, fmt.Errorf("validate unlock token: missing %s claim: %w", claimActor, model.ErrUnauthorized)
	}

	return model.UnlockClaims{
		TokenID:      tok.JwtID(),
		CredentialID: credentialID,
		ActorID:      actorID,
		IssuedAt:     tok.IssuedAt(),
		ExpiresAt:    tok.Expiration(),
	}, nil
}

func stringClaim(tok jwt.Token, name string) (string, bool) {
	raw, ok := tok.Get(name)
	if !ok {
		return "", false
	}
	v, ok := raw.(string)
	return v, ok && v != ""
}

// describe reduces a jwx error to a short reason safe to log. The token
// itself is never included.
func describe(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired()):
		return "expired"
	case errors.Is(err, jwt.ErrInvalidIssuedAt()):
		return "issued_at"
	case errors.Is(err, jwt.ErrInvalidIssuer()):
		return "issuer"
	case errors.Is(err, jwt.ErrInvalidAudience()):
		return "audience"
	case jwt.IsValidationError(err):
		// The only remaining claim check is the typ value.
		return "purpose"
	default:
		return "signature or malformed"
	}
}
