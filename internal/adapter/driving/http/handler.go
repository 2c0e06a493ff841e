package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/metrics"
)

const headerUnlockToken = "X-Unlock-Token"

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP driving adapter that serves the credential vault API.
type Handler struct {
	vault   *application.VaultService
	limiter *UnlockLimiter
	metrics *metrics.Collector
	health  Pinger
	logger  *slog.Logger
}

// NewHandler creates a Handler. limiter, collector and health may be nil, in
// which case unlocks are unlimited, nothing is counted and health reports ok
// without probing storage.
func NewHandler(
	vault *application.VaultService,
	limiter *UnlockLimiter,
	collector *metrics.Collector,
	health Pinger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		vault:   vault,
		limiter: limiter,
		metrics: collector,
		health:  health,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with the middleware chain. metricsHandler, when non-nil, is served at
// /metrics without an actor.
func NewServeMux(h *Handler, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, tagRoute(fn))
	}

	route("POST /api/v1/credentials", h.requireElevated(h.CreateCredential))
	route("GET /api/v1/projects/{id}/credentials", h.withActor(h.ListProjectCredentials))
	route("GET /api/v1/clients/{id}/credentials", h.withActor(h.ListClientCredentials))
	route("GET /api/v1/credentials/{id}", h.withActor(h.GetCredential))
	route("POST /api/v1/credentials/{id}/unlock", h.withActor(h.Unlock))
	route("GET /api/v1/credentials/{id}/reveal", h.withActor(h.Reveal))
	route("PUT /api/v1/credentials/{id}", h.requireElevated(h.UpdateCredential))
	route("GET /api/v1/credentials/{id}/access-log", h.requireAdmin(h.AccessLog))
	route("GET /api/v1/health", h.Health)
	if metricsHandler != nil {
		route("GET /metrics", metricsHandler.ServeHTTP)
	}

	// Applied innermost first, so metrics ends up outermost.
	var wrapped http.Handler = mux
	wrapped = bodySizeMiddleware(wrapped)
	wrapped = securityHeadersMiddleware(wrapped)
	wrapped = requestIDMiddleware(wrapped)
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = metricsMiddleware(h.metrics, wrapped)

	return wrapped
}

// CreateCredential encrypts and stores a new credential.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req CreateCredentialRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	id, err := h.vault.Create(r.Context(), application.CreateCredentialInput{
		ScopeType: model.ScopeType(req.ScopeType),
		ScopeID:   req.ScopeID,
		Kind:      model.Kind(req.Kind),
		Username:  req.Username,
		Secret:    req.Secret,
		URL:       req.URL,
		Notes:     req.Notes,
	}, actorFrom(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateCredentialResponse{ID: id})
}

// ListProjectCredentials lists credential metadata bound to a project.
func (h *Handler) ListProjectCredentials(w http.ResponseWriter, r *http.Request) {
	h.listScope(w, r, model.ScopeProject)
}

// ListClientCredentials lists credential metadata bound to a client.
func (h *Handler) ListClientCredentials(w http.ResponseWriter, r *http.Request) {
	h.listScope(w, r, model.ScopeClient)
}

func (h *Handler) listScope(w http.ResponseWriter, r *http.Request, scopeType model.ScopeType) {
	includeArchived := false
	if v := r.URL.Query().Get("include_archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "include_archived must be a boolean")
			return
		}
		includeArchived = b
	}

	metas, err := h.vault.ListMeta(r.Context(), scopeType, r.PathValue("id"), includeArchived)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := make([]CredentialMetaResponse, 0, len(metas))
	for _, m := range metas {
		resp = append(resp, toCredentialMetaResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCredential returns one credential's metadata.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	meta, err := h.vault.GetMeta(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCredentialMetaResponse(meta))
}

// Unlock exchanges the shared passphrase for a short-lived unlock token.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	if h.limiter != nil && !h.limiter.Allow(actor.ID) {
		h.countUnlock("rate_limited")
		h.logger.WarnContext(r.Context(), "unlock rate limit exceeded", "credential_id", r.PathValue("id"))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many unlock attempts")
		return
	}

	var req UnlockRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	grant, err := h.vault.Unlock(r.Context(), r.PathValue("id"), req.Passphrase, actor)
	if err != nil {
		h.countUnlock(outcomeOf(err))
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.countUnlock("granted")

	writeJSON(w, http.StatusOK, UnlockResponse{
		UnlockToken: grant.Token,
		ExpiresAt:   grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Reveal discloses a credential's plaintext to the holder of a valid unlock
// token and records the disclosure.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	revealed, err := h.vault.Reveal(r.Context(), application.RevealRequest{
		CredentialID: r.PathValue("id"),
		Token:        unlockToken(r),
		Reason:       r.URL.Query().Get("reason"),
		SourceIP:     sourceIP(r),
	})
	if err != nil {
		h.countReveal(outcomeOf(err))
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.countReveal("disclosed")

	writeJSON(w, http.StatusOK, toRevealResponse(revealed))
}

// UpdateCredential applies field changes under a valid unlock token. The
// token is checked before the body is read.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, token := r.PathValue("id"), unlockToken(r)
	if err := h.vault.CheckUnlock(r.Context(), id, token); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	var req UpdateCredentialRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	err := h.vault.Update(r.Context(), id, token, application.UpdateCredentialInput{
		Username:        req.Username,
		Secret:          req.Secret,
		URL:             req.URL,
		Notes:           req.Notes,
		IsArchived:      req.IsArchived,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AccessLog returns the newest disclosure records for a credential.
func (h *Handler) AccessLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.vault.AccessLog(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	resp := make([]AccessLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAccessLogEntryResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports service status and, when configured, storage reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)

	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.health.Ping(ctx); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Time: now})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
}

// decodeBody decodes a JSON request body into v, writing a 400 or 413 and
// returning false on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return false
	}

	return true
}

func (h *Handler) countUnlock(outcome string) {
	if h.metrics != nil {
		h.metrics.UnlockAttempt(outcome)
	}
}

func (h *Handler) countReveal(outcome string) {
	if h.metrics != nil {
		h.metrics.Reveal(outcome)
	}
}

// unlockToken prefers the header over the query parameter.
func unlockToken(r *http.Request) string {
	if t := r.Header.Get(headerUnlockToken); t != "" {
		return t
	}
	return r.URL.Query().Get("unlock_token")
}

// outcomeOf maps an error to a metric label.
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return "denied"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrIntegrity):
		return "integrity_error"
	default:
		return "error"
	}
}
