package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	buf.Reset()
	return rec
}

func TestCorrelationHandler_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	ctx := WithActorID(WithRequestID(context.Background(), "req-1"), "user-7")
	logger.InfoContext(ctx, "credential revealed", "credential_id", "c1")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "credential revealed", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "user-7", rec["actor_id"])
	assert.Equal(t, "c1", rec["credential_id"])
}

func TestCorrelationHandler_OmitsAbsentIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.InfoContext(context.Background(), "startup")

	rec := decodeLine(t, &buf)
	assert.NotContains(t, rec, "request_id")
	assert.NotContains(t, rec, "actor_id")
}

func TestCorrelationHandler_WithAttrsKeepsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo).With("component", "vault")

	logger.WarnContext(WithRequestID(context.Background(), "req-2"), "passphrase mismatch")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "vault", rec["component"])
	assert.Equal(t, "req-2", rec["request_id"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
