// Package hostapi implements the ScopeDirectory port against the host
// system's REST API.
package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ScopeDirectory = (*ScopeDirectory)(nil)

const maxResponseBytes = 64 << 10

// ScopeDirectory asks the host API whether a project or client exists and is
// active. It expects GET {base}/api/v1/projects/{id} and
// GET {base}/api/v1/clients/{id} to answer 200 with {"id", "is_deleted"} or 404.
type ScopeDirectory struct {
	http    *http.Client
	baseURL *url.URL
	token   string
}

// NewScopeDirectory creates a ScopeDirectory whose transport honours the
// host's Cache-Control and ETag headers via an in-memory httpcache.
func NewScopeDirectory(baseURL, token string) (*ScopeDirectory, error) {
	transport := httpcache.NewMemoryCacheTransport()
	client := &http.Client{Transport: transport, Timeout: 10 * time.Second}
	return NewScopeDirectoryWithHTTPClient(client, baseURL, token)
}

// NewScopeDirectoryWithHTTPClient creates a ScopeDirectory with a custom
// http.Client. Tests use it to point at an httptest server.
func NewScopeDirectoryWithHTTPClient(client *http.Client, baseURL, token string) (*ScopeDirectory, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing scope API URL: %w", model.ErrConfiguration)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scope API URL must be http or https, got %q: %w", baseURL, model.ErrConfiguration)
	}

	return &ScopeDirectory{http: client, baseURL: u, token: token}, nil
}

type scopeResponse struct {
	ID        string `json:"id"`
	IsDeleted bool   `json:"is_deleted"`
}

// Exists reports whether the scope exists and is not soft-deleted. A 404 is
// a definitive "no"; any other non-200 status is an error. An id that is not
// a single path segment, or a response naming a different id, is also "no".
func (d *ScopeDirectory) Exists(ctx context.Context, scopeType model.ScopeType, id string) (bool, error) {
	var segment string
	switch scopeType {
	case model.ScopeProject:
		segment = "projects"
	case model.ScopeClient:
		segment = "clients"
	default:
		return false, fmt.Errorf("unknown scope type %q: %w", scopeType, model.ErrValidation)
	}
	if !validScopeID(id) {
		return false, nil
	}

	endpoint := d.baseURL.JoinPath("api", "v1", segment, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, fmt.Errorf("build scope request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("check %s %q: %w", scopeType, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("check %s %q: host API returned HTTP %d", scopeType, id, resp.StatusCode)
	}

	// Read to EOF so the caching transport can store the response.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("read %s %q: %w", scopeType, id, err)
	}

	var body scopeResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, fmt.Errorf("decode %s %q: %w", scopeType, id, err)
	}

	// A host that rewrites or aliases paths must not vouch for another scope.
	if body.ID != id {
		return false, nil
	}

	return !body.IsDeleted, nil
}

// validScopeID reports whether id can be sent as exactly one path segment.
// Ids that could be cleaned or split into other segments never exist.
func validScopeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
