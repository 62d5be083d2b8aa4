package model

import "time"

// Classroom represents a school class group.
type Classroom struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	GradeLevel  int       `json:"grade_level"`
	TeacherID   int       `json:"teacher_id"`
	TeacherName string    `json:"teacher_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
