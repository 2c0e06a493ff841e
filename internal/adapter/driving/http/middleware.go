package httphandler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/logging"
	"github.com/ericfisherdev/credvault/internal/metrics"
)

const (
	maxBodySize = 1 << 20 // 1 MiB

	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
	headerRequestID = "X-Request-ID"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	routeKey
)

// requestIDPattern bounds what an upstream proxy may pass as a request id.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the embedded writer.
func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// routeHolder lets the innermost handler report the matched mux pattern to
// outer middleware, which only sees the request before the mux populates it.
type routeHolder struct {
	pattern string
}

// tagRoute records r.Pattern into the routeHolder placed by metricsMiddleware.
func tagRoute(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(routeKey).(*routeHolder); ok {
			h.pattern = r.Pattern
		}
		next(w, r)
	}
}

// metricsMiddleware counts every request by route pattern and status.
func metricsMiddleware(m *metrics.Collector, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		holder := &routeHolder{}
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), routeKey, holder)))

		m.ObserveRequest(holder.pattern, sw.status, time.Since(start))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
// Query strings are never logged because reveal may carry the unlock token there.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", sw.Header().Get(headerRequestID),
		)
	})
}

// recoveryMiddleware recovers from panics in HTTP handlers, logs the error,
// and returns a 500 response.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.ErrorContext(r.Context(), "panic recovered",
					"panic", v,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware propagates a well-formed incoming X-Request-ID or mints
// a new one, echoes it on the response and adds it to the log context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// securityHeadersMiddleware sets standard security headers on all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// bodySizeMiddleware limits request body size to prevent memory exhaustion.
func bodySizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// withActor requires the upstream authentication headers and stores the
// actor in the request context. Requests without an actor id get 401.
func (h *Handler) withActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerActorID))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor identity")
			return
		}
		actor := model.Actor{ID: id, Role: model.Role(strings.TrimSpace(r.Header.Get(headerActorRole)))}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = logging.WithActorID(ctx, actor.ID)
		next(w, r.WithContext(ctx))
	}
}

// requireElevated allows only Admin and Director actors through.
func (h *Handler) requireElevated(next http.HandlerFunc) http.HandlerFunc {
	return h.withActor(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Role.IsElevated() {
			h.logger.WarnContext(r.Context(), "elevated role required", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden", "this operation requires the Admin or Director role")
			return
		}
		next(w, r)
	})
}

// requireAdmin allows only Admin actors through.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.withActor(func(w http.ResponseWriter, r *http.Request) {
		if actorFrom(r).Role != model.RoleAdmin {
			h.logger.WarnContext(r.Context(), "admin role required", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden", "this operation requires the Admin role")
			return
		}
		next(w, r)
	})
}

func actorFrom(r *http.Request) model.Actor {
	a, _ := r.Context().Value(actorKey).(model.Actor)
	return a
}

// sourceIP returns the first X-Forwarded-For hop, or the host part of the
// connection's remote address.
func sourceIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
