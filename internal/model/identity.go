package model

// Role is the coarse role carried by an authenticated identity.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Identity is the resolved user record for the current session.
// It is replaced as a whole, never mutated field by field.
type Identity struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
	Password string `json:"password" binding:"required,min=3,max=128"`
}

// TokenResponse is returned by POST /auth/login and POST /auth/refresh.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         *Identity `json:"user,omitempty"`
}

// Credential returns the token pair carried by the response.
func (t TokenResponse) Credential() Credential {
	return Credential{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
}
