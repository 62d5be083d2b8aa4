package model

import "time"

// EventType is a kind of conduct event with its point value.
// Negative points are demerits.
type EventType struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Points      int    `json:"points"`
	Description string `json:"description,omitempty"`
}

// Event is a recorded conduct event for a student.
type Event struct {
	ID            int       `json:"id"`
	StudentID     int       `json:"student_id"`
	EventTypeID   int       `json:"event_type_id"`
	EventTypeName string    `json:"event_type_name,omitempty"`
	Points        int       `json:"points"`
	Note          string    `json:"note,omitempty"`
	RecordedBy    int       `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateEventRequest is the payload for POST /events.
type CreateEventRequest struct {
	StudentID   int    `json:"student_id" binding:"required"`
	EventTypeID int    `json:"event_type_id" binding:"required"`
	Note        string `json:"note" binding:"max=500"`
}
