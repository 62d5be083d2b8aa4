package model

import "time"

// PermissionReason explains why a student holds no usable event permission.
type PermissionReason string

const (
	ReasonNotGranted PermissionReason = "not_granted"
	ReasonExpired    PermissionReason = "expired"
	ReasonInactive   PermissionReason = "inactive"
)

// Valid reports whether r is a known reason.
func (r PermissionReason) Valid() bool {
	switch r {
	case ReasonNotGranted, ReasonExpired, ReasonInactive:
		return true
	default:
		return false
	}
}

// PermissionGrant is a time-boxed, revocable permission for a student to record
// events for themselves. The backend owns it; clients only hold short-lived copies.
type PermissionGrant struct {
	ClassroomID   int        `json:"classroom_id"`
	ClassroomName string     `json:"classroom_name"`
	GrantedAt     time.Time  `json:"granted_at"`
	GrantedByName string     `json:"granted_by_name"`
	ExpiresAt     *time.Time `json:"expires_at"`
	Notes         *string    `json:"notes"`
	IsActive      bool       `json:"is_active"`
}

// UsableAt reports whether the grant can be used at now.
func (g PermissionGrant) UsableAt(now time.Time) bool {
	if !g.IsActive {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// PermissionCheck is the response of GET /students/{id}/event-permission.
type PermissionCheck struct {
	HasPermission bool              `json:"has_permission"`
	Reason        *PermissionReason `json:"reason,omitempty"`
	Permission    *PermissionGrant  `json:"permission,omitempty"`
}

// GrantPermissionRequest is the payload for PUT /students/{id}/event-permission.
type GrantPermissionRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     *string    `json:"notes" binding:"omitempty,max=500"`
}
