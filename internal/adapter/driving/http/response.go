package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error","code":"internal"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with a machine-readable code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeDomainError maps a domain sentinel to its HTTP status and code. Only
// unexpected errors are logged here; the service already logs security events.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "credential not found")
	case errors.Is(err, model.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "credential was modified concurrently")
	case errors.Is(err, model.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "integrity_error", "stored credential failed integrity check")
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateCredentialRequest is the JSON body for the create credential endpoint.
type CreateCredentialRequest struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Kind      string `json:"kind"`
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	URL       string `json:"url"`
	Notes     string `json:"notes"`
}

// CreateCredentialResponse carries only the new id; the secret is never echoed.
type CreateCredentialResponse struct {
	ID string `json:"id"`
}

// UpdateCredentialRequest is the JSON body for the update endpoint. Absent
// fields are left unchanged.
type UpdateCredentialRequest struct {
	Username        *string `json:"username"`
	Secret          *string `json:"secret"`
	URL             *string `json:"url"`
	Notes           *string `json:"notes"`
	IsArchived      *bool   `json:"is_archived"`
	ExpectedVersion *int    `json:"expected_version"`
}

// UnlockRequest is the JSON body for the unlock endpoint.
type UnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

// UnlockResponse returns the capability token and its expiry.
type UnlockResponse struct {
	UnlockToken string `json:"unlock_token"`
	ExpiresAt   string `json:"expires_at"`
}

// CredentialMetaResponse is the JSON representation of credential metadata.
// It has no secret field of any kind.
type CredentialMetaResponse struct {
	ID            string `json:"id"`
	ScopeType     string `json:"scope_type"`
	ScopeID       string `json:"scope_id"`
	Kind          string `json:"kind"`
	Username      string `json:"username"`
	URL           string `json:"url"`
	LastRotatedAt string `json:"last_rotated_at"`
	IsArchived    bool   `json:"is_archived"`
	Version       int    `json:"version"`
	UpdatedAt     string `json:"updated_at"`
}

// RevealResponse is the only response type that carries plaintext.
type RevealResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	URL       string `json:"url"`
	Notes     string `json:"notes"`
	NotesHTML string `json:"notes_html"`
}

// AccessLogEntryResponse is the JSON representation of one disclosure record.
type AccessLogEntryResponse struct {
	ID           string `json:"id"`
	CredentialID string `json:"credential_id"`
	ViewedBy     string `json:"viewed_by"`
	ViewedAt     string `json:"viewed_at"`
	Reason       string `json:"reason"`
	SourceIP     string `json:"source_ip"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toCredentialMetaResponse(m model.CredentialMeta) CredentialMetaResponse {
	return CredentialMetaResponse{
		ID:            m.ID,
		ScopeType:     string(m.ScopeType),
		ScopeID:       m.ScopeID,
		Kind:          string(m.Kind),
		Username:      m.Username,
		URL:           m.URL,
		LastRotatedAt: m.LastRotatedAt.UTC().Format(time.RFC3339),
		IsArchived:    m.IsArchived,
		Version:       m.Version,
		UpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toRevealResponse(c model.RevealedCredential) RevealResponse {
	return RevealResponse{
		ID:        c.ID,
		Kind:      string(c.Kind),
		Username:  c.Username,
		Secret:    c.Secret,
		URL:       c.URL,
		Notes:     c.Notes,
		NotesHTML: RenderMarkdown(c.Notes),
	}
}

func toAccessLogEntryResponse(e model.AccessLogEntry) AccessLogEntryResponse {
	return AccessLogEntryResponse{
		ID:           e.ID,
		CredentialID: e.CredentialID,
		ViewedBy:     e.ViewedBy,
		ViewedAt:     e.ViewedAt.UTC().Format(time.RFC3339Nano),
		Reason:       e.Reason,
		SourceIP:     e.SourceIP,
	}
}
