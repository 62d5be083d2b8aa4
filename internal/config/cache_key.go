package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CredentialKey returns the hash key holding a console profile's token pair.
func (r *CacheKeyStruct) CredentialKey(profile string) string {
	return fmt.Sprintf("console:%s:credential", profile)
}

// RefreshTokenKey returns the key of an issued refresh token on the dev server.
func (r *CacheKeyStruct) RefreshTokenKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

// SessionKey returns the key of a live login session on the dev server.
func (r *CacheKeyStruct) SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

var CacheKey = NewCacheKeyStruct()
