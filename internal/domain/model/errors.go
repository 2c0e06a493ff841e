package model

import "errors"

// Error taxonomy shared by every layer. Adapters and services wrap these with
// context via fmt.Errorf("...: %w", Err...) and callers match with errors.Is.
var (
	// ErrConfiguration indicates missing or malformed operator configuration.
	// It is fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates caller input that must be corrected, such as an
	// unknown scope type or a scope that does not exist.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates a wrong passphrase or an invalid, expired or
	// mismatched unlock token. The caller may retry the unlock step.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the actor's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the credential id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity indicates stored ciphertext failed authentication: it is
	// corrupt or was sealed under a different key. Retrying will not help.
	ErrIntegrity = errors.New("integrity error")

	// ErrConflict indicates an update carried an expected version that no
	// longer matches the stored record.
	ErrConflict = errors.New("version conflict")
)
