package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionGrantUsableAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	tests := []struct {
		name  string
		grant PermissionGrant
		want  bool
	}{
		{"active without expiry", PermissionGrant{IsActive: true}, true},
		{"active before expiry", PermissionGrant{IsActive: true, ExpiresAt: &later}, true},
		{"expires exactly now", PermissionGrant{IsActive: true, ExpiresAt: &now}, false},
		{"revoked", PermissionGrant{IsActive: false}, false},
		{"revoked before expiry", PermissionGrant{IsActive: false, ExpiresAt: &later}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grant.UsableAt(now))
		})
	}
}
