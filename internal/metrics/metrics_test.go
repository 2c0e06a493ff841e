package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveRequest(t *testing.T) {
	c := NewCollector()

	c.ObserveRequest("GET /api/v1/health", http.StatusOK, 5*time.Millisecond)
	c.ObserveRequest("GET /api/v1/health", http.StatusOK, 7*time.Millisecond)
	c.ObserveRequest("", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET /api/v1/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("unmatched", "404")))
}

func TestCollector_SecurityCounters(t *testing.T) {
	c := NewCollector()

	c.UnlockAttempt("granted")
	c.UnlockAttempt("denied")
	c.UnlockAttempt("denied")
	c.Reveal("disclosed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.unlockAttempts.WithLabelValues("granted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.unlockAttempts.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.disclosures.WithLabelValues("disclosed")))
}

func TestHandler_Exposition(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest("POST /api/v1/credentials/{id}/unlock", http.StatusOK, time.Millisecond)
	c.UnlockAttempt("granted")

	rec := httptest.NewRecorder()
	Handler(NewRegistry(c)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "http_requests_total"))
	assert.True(t, strings.Contains(text, "http_request_duration_seconds"))
	assert.True(t, strings.Contains(text, "credvault_unlock_attempts_total"))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
