// Package config loads server configuration from the environment.
//
// Load fails fast: a process with a missing or malformed signing key must not
// start, because every credential it would mint or accept depends on it.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "hushmcp/pkg/platform/strings"
)

// Config is the full server configuration.
type Config struct {
	HTTP       HTTPConfig
	Secrets    SecretsConfig
	Consent    ConsentConfig
	Session    SessionConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Revocation RevocationConfig
	LogLevel   slog.Level
	DevMode    bool
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// SecretsConfig holds the two root keys of the trust layer. Both are read-only
// after startup.
type SecretsConfig struct {
	// SigningKey keys the HMAC over consent tokens and trust links.
	SigningKey []byte
	// VaultMasterKey is the 256-bit root for per-user vault key derivation.
	VaultMasterKey []byte
}

// ConsentConfig carries issuance defaults applied when callers omit a TTL.
type ConsentConfig struct {
	DefaultTokenTTL     time.Duration
	DefaultTrustLinkTTL time.Duration
}

// SessionConfig configures the management-API session layer.
type SessionConfig struct {
	JWTSecret []byte
	TTL       time.Duration
	Issuer    string
	// Accounts maps dashboard login emails to bcrypt password hashes, parsed
	// from SESSION_ACCOUNTS ("email=bcrypt-hash,email=bcrypt-hash").
	Accounts map[string]string
}

// PostgresConfig configures the Postgres-backed stores.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the optional Redis revocation backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit relay.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// RevocationConfig selects the revocation registry backend.
type RevocationConfig struct {
	// Backend is one of "memory", "redis", "postgres".
	Backend         string
	JanitorInterval time.Duration
}

const (
	minSigningKeyLen  = 32
	vaultMasterKeyLen = 32

	defaultTokenTTL     = 7 * 24 * time.Hour
	defaultTrustLinkTTL = 30 * 24 * time.Hour
	defaultSessionTTL   = 12 * time.Hour
	defaultAuditTopic   = "hushmcp.audit.events"
)

// Load builds a Config from environment variables so main stays lean.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            envOr("HTTP_ADDR", ":8080"),
			ShutdownTimeout: envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Consent: ConsentConfig{
			DefaultTokenTTL:     envDuration("DEFAULT_TOKEN_TTL", defaultTokenTTL),
			DefaultTrustLinkTTL: envDuration("DEFAULT_TRUST_LINK_TTL", defaultTrustLinkTTL),
		},
		Session: SessionConfig{
			TTL:    envDuration("SESSION_TTL", defaultSessionTTL),
			Issuer: envOr("SESSION_ISSUER", "hushmcp"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    strutil.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", defaultAuditTopic),
		},
		Revocation: RevocationConfig{
			Backend:         envOr("REVOCATION_BACKEND", "memory"),
			JanitorInterval: envDuration("REVOCATION_JANITOR_INTERVAL", time.Hour),
		},
		DevMode: os.Getenv("DEV_MODE") == "true",
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	signingKey := os.Getenv("SECRET_KEY")
	if len(signingKey) < minSigningKeyLen {
		if !cfg.DevMode {
			return Config{}, fmt.Errorf("SECRET_KEY must be at least %d characters", minSigningKeyLen)
		}
		signingKey = "insecure-dev-signing-key-do-not-use-0000"
	}
	cfg.Secrets.SigningKey = []byte(signingKey)

	vaultKey, err := parseVaultKey(os.Getenv("VAULT_ENCRYPTION_KEY"), cfg.DevMode)
	if err != nil {
		return Config{}, err
	}
	cfg.Secrets.VaultMasterKey = vaultKey

	sessionSecret := os.Getenv("SESSION_JWT_SECRET")
	if sessionSecret == "" {
		// The management API reuses the signing key when no dedicated session
		// secret is provisioned. Agent-facing endpoints never read it.
		sessionSecret = signingKey
	}
	cfg.Session.JWTSecret = []byte(sessionSecret)

	accounts, err := parseAccounts(os.Getenv("SESSION_ACCOUNTS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Session.Accounts = accounts

	switch cfg.Revocation.Backend {
	case "memory", "redis", "postgres":
	default:
		return Config{}, fmt.Errorf("REVOCATION_BACKEND must be memory, redis, or postgres, got %q", cfg.Revocation.Backend)
	}
	if cfg.Revocation.Backend == "redis" && cfg.Redis.URL == "" {
		return Config{}, fmt.Errorf("REVOCATION_BACKEND=redis requires REDIS_URL")
	}
	if cfg.Revocation.Backend == "postgres" && cfg.Postgres.DSN == "" {
		return Config{}, fmt.Errorf("REVOCATION_BACKEND=postgres requires POSTGRES_DSN")
	}

	return cfg, nil
}

// parseVaultKey enforces the 64-hex-character key format so a truncated or
// re-encoded key is caught at startup, not at first decrypt.
func parseVaultKey(raw string, devMode bool) ([]byte, error) {
	if raw == "" {
		if !devMode {
			return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY is required")
		}
		return make([]byte, vaultMasterKeyLen), nil
	}
	if len(raw) != vaultMasterKeyLen*2 {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY must be %d hex characters", vaultMasterKeyLen*2)
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return key, nil
}

func parseAccounts(raw string) (map[string]string, error) {
	accounts := make(map[string]string)
	if raw == "" {
		return accounts, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		email, hash, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("SESSION_ACCOUNTS entry %q is not email=hash", pair)
		}
		// Login lowercases before lookup, so keys must be lowercase too.
		accounts[strings.ToLower(email)] = hash
	}
	return accounts, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn, or error, got %q", raw)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

