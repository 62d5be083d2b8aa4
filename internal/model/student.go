package model

import "time"

// Student is a roster entry. UserID links it to the login identity.
type Student struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	StudentCode string    `json:"student_code"`
	Name        string    `json:"name"`
	ClassroomID int       `json:"classroom_id"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}
