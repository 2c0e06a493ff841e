package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() isolates tests from each other.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it cannot be misinterpreted as query
	// parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

var fixtureTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// newTestCredential returns a valid credential in project P1. The ciphertext
// is arbitrary bytes long enough to satisfy the schema; the repo never
// interprets it.
func newTestCredential(id string, kind model.Kind, username string) model.Credential {
	blob := make([]byte, 40)
	for i := range blob {
		blob[i] = byte(i + len(id))
	}

	return model.Credential{
		ID:               id,
		ScopeType:        model.ScopeProject,
		ScopeID:          "P1",
		Kind:             kind,
		Username:         username,
		SecretCiphertext: blob,
		URL:              "https://panel.example.com",
		Notes:            "primary account",
		LastRotatedAt:    fixtureTime,
		CreatedBy:        "admin-1",
		CreatedAt:        fixtureTime,
	}
}
