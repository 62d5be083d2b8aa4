package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("CREDENTIAL_STORE", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")

	cfg := Load()

	assert.Equal(t, "http://localhost:8080/api/v1", cfg.APIBaseURL)
	assert.Equal(t, StoreFile, cfg.CredentialStore)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.False(t, cfg.CacheIdentity)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://conduct.example.com/api/v1/")
	t.Setenv("CREDENTIAL_STORE", StoreRedis)
	t.Setenv("CACHE_IDENTITY", "true")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("REFRESH_TOKEN_TTL", "48h")
	t.Setenv("BCRYPT_COST", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg := Load()

	assert.Equal(t, "https://conduct.example.com/api/v1", cfg.APIBaseURL)
	assert.Equal(t, StoreRedis, cfg.CredentialStore)
	assert.True(t, cfg.CacheIdentity)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 6, cfg.BcryptCost)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "console:default:credential", CacheKey.CredentialKey("default"))
	assert.Equal(t, "refresh:abc", CacheKey.RefreshTokenKey("abc"))
	assert.Equal(t, "session:s-1", CacheKey.SessionKey("s-1"))
}
