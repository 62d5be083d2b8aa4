package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Credential store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all application configuration for the console and the dev server.
type Config struct {
	// ─── Client ────────────────────────────────────────────────────────
	APIBaseURL     string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	LogoutTimeout  time.Duration
	LogLevel       string
	LogFormat      string

	// CredentialStore selects where tokens are persisted: file, redis or memory.
	CredentialStore string
	CredentialPath  string
	CredentialKey   string
	// CacheIdentity keeps the last profile next to the tokens for instant paint.
	// A cached identity is always revalidated before it is trusted.
	CacheIdentity bool
	RedisURL      string

	// ─── Dev server ────────────────────────────────────────────────────
	ServerPort      string
	GinMode         string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
	SessionBackend  string
	LoginRateLimit  int
	// AllowedOrigins controls HTTP CORS.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080/api/v1"), "/"),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		RefreshTimeout:  getEnvDuration("REFRESH_TIMEOUT", 10*time.Second),
		LogoutTimeout:   getEnvDuration("LOGOUT_TIMEOUT", 3*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "pretty"),
		CredentialStore: getEnv("CREDENTIAL_STORE", StoreFile),
		CredentialPath:  getEnv("CREDENTIAL_PATH", defaultCredentialPath()),
		CredentialKey:   getEnv("CREDENTIAL_KEY", "default"),
		CacheIdentity:   getEnvBool("CACHE_IDENTITY", false),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		JWTSecret:       getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:      getEnvInt("BCRYPT_COST", 6),
		SessionBackend:  getEnv("SESSION_BACKEND", StoreMemory),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 30),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "conduct-console", "credentials.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getEnvDuration accepts Go duration strings ("15m") or, under KEY_SECONDS, a plain
// number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
