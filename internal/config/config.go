// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/logging"
)

// Config holds the application configuration loaded from environment variables.
// It is read once at startup and never mutated afterwards.
type Config struct {
	MasterKey        string
	UnlockPassphrase string
	JWTKey           string
	JWTIssuer        string
	JWTAudience      string
	ListenAddr       string
	DBPath           string
	ScopeAPIURL      string
	ScopeAPIToken    string
	UnlockRate       int // Unlock attempts per actor per minute.
	LogLevel         slog.Level
}

// UsesScopeAPI returns true when scope existence should be checked against the
// host API rather than the local scope registry tables.
func (c *Config) UsesScopeAPI() bool {
	return c.ScopeAPIURL != ""
}

// LogValue implements slog.LogValuer. Secrets are reported only as set or unset.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("master_key_set", c.MasterKey != ""),
		slog.Bool("unlock_passphrase_set", c.UnlockPassphrase != ""),
		slog.Bool("jwt_key_set", c.JWTKey != ""),
		slog.String("jwt_issuer", c.JWTIssuer),
		slog.String("jwt_audience", c.JWTAudience),
		slog.String("listen_addr", c.ListenAddr),
		slog.String("db_path", c.DBPath),
		slog.String("scope_api_url", c.ScopeAPIURL),
		slog.Int("unlock_rate", c.UnlockRate),
		slog.String("log_level", c.LogLevel.String()),
	)
}

// Load reads configuration from environment variables and returns a validated Config.
// CREDVAULT_MASTER_KEY, CREDVAULT_UNLOCK_PASSPHRASE and CREDVAULT_JWT_KEY are
// required; a missing or empty value yields an error wrapping model.ErrConfiguration.
// Optional variables with defaults: CREDVAULT_LISTEN_ADDR (127.0.0.1:8080),
// CREDVAULT_DB_PATH (credvault.db), CREDVAULT_UNLOCK_RATE (5), CREDVAULT_LOG_LEVEL (info).
func Load() (*Config, error) {
	var missing []error
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, fmt.Errorf("%s is required: %w", key, model.ErrConfiguration))
		}
		return v
	}

	masterKey := require("CREDVAULT_MASTER_KEY")
	passphrase := require("CREDVAULT_UNLOCK_PASSPHRASE")
	jwtKey := require("CREDVAULT_JWT_KEY")
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CREDVAULT_LISTEN_ADDR"); ok && v != "" {
		listenAddr = v
	}

	dbPath := "credvault.db"
	if v, ok := os.LookupEnv("CREDVAULT_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	unlockRate := 5
	if v, ok := os.LookupEnv("CREDVAULT_UNLOCK_RATE"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("CREDVAULT_UNLOCK_RATE must be a positive integer, got %q: %w", v, model.ErrConfiguration)
		}
		unlockRate = parsed
	}

	level, err := logging.ParseLevel(os.Getenv("CREDVAULT_LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("CREDVAULT_LOG_LEVEL: %v: %w", err, model.ErrConfiguration)
	}

	return &Config{
		MasterKey:        masterKey,
		UnlockPassphrase: passphrase,
		JWTKey:           jwtKey,
		JWTIssuer:        os.Getenv("CREDVAULT_JWT_ISSUER"),
		JWTAudience:      os.Getenv("CREDVAULT_JWT_AUDIENCE"),
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
		ScopeAPIURL:      os.Getenv("CREDVAULT_SCOPE_API_URL"),
		ScopeAPIToken:    os.Getenv("CREDVAULT_SCOPE_API_TOKEN"),
		UnlockRate:       unlockRate,
		LogLevel:         level,
	}, nil
}
