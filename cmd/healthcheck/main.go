// Command healthcheck probes the local credvault health endpoint. It exits
// non-zero when storage is unreachable or the server is down.
package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	os.Exit(check())
}

func check() int {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := probe(ctx, healthURL(os.Getenv("CREDVAULT_LISTEN_ADDR"))); err != nil {
		_, _ = io.WriteString(os.Stderr, "healthcheck: "+err.Error()+"\n")
		return 1
	}
	return 0
}

type unhealthyError struct {
	status int
	body   string
}

func (e *unhealthyError) Error() string {
	return "status " + http.StatusText(e.status) + ": " + e.body
}

// probe requires a 200 with {"status":"ok"}. Any other answer, including a
// 503 from a failed storage ping, is unhealthy.
func probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := (&http.Client{Timeout: probeTimeout}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return &unhealthyError{status: resp.StatusCode, body: "unreadable body"}
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return &unhealthyError{status: resp.StatusCode, body: body.Status}
	}
	return nil
}

// healthURL points at loopback rather than a bind-all listen address. The
// probe runs inside the server's container, where loopback always works.
func healthURL(listenAddr string) string {
	return "http://" + normalizeAddr(listenAddr) + "/api/v1/health"
}

func normalizeAddr(raw string) string {
	const fallback = "127.0.0.1:8080"

	host, port, err := net.SplitHostPort(raw)
	if raw == "" || err != nil {
		return fallback
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
