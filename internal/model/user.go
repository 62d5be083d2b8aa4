package model

import "time"

// User is an account known to the backend.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the public identity of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}
