package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/domain/model"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vault.db")
}

// clearConfigEnv blanks every CREDVAULT_ variable so the host environment
// cannot leak into config loading.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CREDVAULT_MASTER_KEY", "CREDVAULT_UNLOCK_PASSPHRASE", "CREDVAULT_JWT_KEY",
		"CREDVAULT_JWT_ISSUER", "CREDVAULT_JWT_AUDIENCE", "CREDVAULT_LISTEN_ADDR",
		"CREDVAULT_DB_PATH", "CREDVAULT_SCOPE_API_URL", "CREDVAULT_SCOPE_API_TOKEN",
		"CREDVAULT_UNLOCK_RATE", "CREDVAULT_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestMigrate_UpDownVersion(t *testing.T) {
	dbPath := tempDBPath(t)

	out, err := runCLI(t, "--db", dbPath, "migrate", "version")
	require.NoError(t, err)
	assert.Equal(t, "schema version: none\n", out)

	out, err = runCLI(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "schema version: 1\n", out)

	// Up is idempotent.
	out, err = runCLI(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "schema version: 1\n", out)

	out, err = runCLI(t, "--db", dbPath, "migrate", "down", "--steps", "1")
	require.NoError(t, err)
	assert.Equal(t, "schema version: none\n", out)

	_, err = runCLI(t, "--db", dbPath, "migrate", "down", "--steps", "0")
	assert.Error(t, err)
}

func TestScopes_RegisterAndDelete(t *testing.T) {
	dbPath := tempDBPath(t)
	_, err := runCLI(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)

	out, err := runCLI(t, "--db", dbPath, "scopes", "register", "Project", "P1", "--name", "Marketing site")
	require.NoError(t, err)
	assert.Equal(t, "registered Project P1\n", out)

	out, err = runCLI(t, "--db", dbPath, "scopes", "delete", "Project", "P1")
	require.NoError(t, err)
	assert.Equal(t, "deleted Project P1\n", out)

	_, err = runCLI(t, "--db", dbPath, "scopes", "register", "Team", "T1")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = runCLI(t, "--db", dbPath, "scopes", "delete", "Client", "C404")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = runCLI(t, "--db", dbPath, "scopes", "register", "Project")
	assert.Error(t, err)
}

func TestAccessLog_Output(t *testing.T) {
	dbPath := tempDBPath(t)
	_, err := runCLI(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)

	seedAccessLog(t, dbPath)

	out, err := runCLI(t, "--db", dbPath, "access-log", "cred-1")
	require.NoError(t, err)
	assert.Contains(t, out, "VIEWED AT")
	assert.Contains(t, out, "operator-2")
	assert.Contains(t, out, "2026-05-04T10:02:00Z")
	assert.Contains(t, out, "renewal")

	out, err = runCLI(t, "--db", dbPath, "access-log", "cred-1", "--limit", "1", "--json")
	require.NoError(t, err)
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "operator-2", rows[0]["viewed_by"])
	assert.Equal(t, "198.51.100.2", rows[0]["source_ip"])

	_, err = runCLI(t, "--db", dbPath, "access-log", "cred-404")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAccessLog_Empty(t *testing.T) {
	dbPath := tempDBPath(t)
	_, err := runCLI(t, "--db", dbPath, "migrate", "up")
	require.NoError(t, err)

	db, err := sqliteadapter.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, sqliteadapter.NewCredentialRepo(db).Create(context.Background(), seedCredential()))
	require.NoError(t, db.Close())

	out, err := runCLI(t, "--db", dbPath, "access-log", "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "no disclosures recorded\n", out)
}

func TestCheckConfig(t *testing.T) {
	clearConfigEnv(t)

	_, err := runCLI(t, "check-config")
	assert.ErrorIs(t, err, model.ErrConfiguration)

	t.Setenv("CREDVAULT_MASTER_KEY", "master-secret")
	t.Setenv("CREDVAULT_UNLOCK_PASSPHRASE", "open sesame")
	t.Setenv("CREDVAULT_JWT_KEY", "jwt-key")

	out, err := runCLI(t, "check-config")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration ok")
	assert.Contains(t, out, "local registry")
	assert.NotContains(t, out, "master-secret")
	assert.NotContains(t, out, "open sesame")

	t.Setenv("CREDVAULT_SCOPE_API_URL", "https://host.example.com")
	out, err = runCLI(t, "check-config")
	require.NoError(t, err)
	assert.Contains(t, out, "host api https://host.example.com")
}

var seedTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func seedCredential() model.Credential {
	return model.Credential{
		ID:               "cred-1",
		ScopeType:        model.ScopeProject,
		ScopeID:          "P1",
		Kind:             model.KindHosting,
		Username:         "deploy",
		SecretCiphertext: bytes.Repeat([]byte{0xAB}, 40),
		LastRotatedAt:    seedTime,
		CreatedBy:        "admin-1",
		CreatedAt:        seedTime,
	}
}

func seedAccessLog(t *testing.T, dbPath string) {
	t.Helper()

	db, err := sqliteadapter.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, sqliteadapter.NewCredentialRepo(db).Create(ctx, seedCredential()))

	logs := sqliteadapter.NewAccessLogRepo(db)
	require.NoError(t, logs.Append(ctx, model.AccessLogEntry{
		ID: "log-1", CredentialID: "cred-1", ViewedBy: "operator-1",
		ViewedAt: seedTime.Add(time.Minute), Reason: "audit", SourceIP: "198.51.100.1",
	}))
	require.NoError(t, logs.Append(ctx, model.AccessLogEntry{
		ID: "log-2", CredentialID: "cred-1", ViewedBy: "operator-2",
		ViewedAt: seedTime.Add(2 * time.Minute), Reason: "renewal", SourceIP: "198.51.100.2",
	}))
}
