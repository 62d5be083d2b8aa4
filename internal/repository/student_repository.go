package repository

import (
	"context"
	"sort"
	"time"

	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// StudentFilter narrows a roster listing. Zero fields are ignored.
type StudentFilter struct {
	UserID      int
	ClassroomID int
}

// StudentRepository handles roster data access.
type StudentRepository struct {
	db *database.MemoryDB
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db *database.MemoryDB) *StudentRepository {
	return &StudentRepository{db: db}
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(_ context.Context, id int) (*model.Student, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	s, ok := r.db.Students[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// List returns students matching filter ordered by ID.
func (r *StudentRepository) List(_ context.Context, filter StudentFilter) ([]model.Student, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	out := make([]model.Student, 0, len(r.db.Students))
	for _, s := range r.db.Students {
		if filter.UserID != 0 && s.UserID != filter.UserID {
			continue
		}
		if filter.ClassroomID != 0 && s.ClassroomID != filter.ClassroomID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create inserts a new student and sets its ID.
func (r *StudentRepository) Create(_ context.Context, s *model.Student) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	s.ID = r.db.NextID("students")
	s.CreatedAt = time.Now().UTC()
	stored := *s
	r.db.Students[s.ID] = &stored
	return nil
}

// AddPoints adjusts a student's running point total.
func (r *StudentRepository) AddPoints(_ context.Context, id, delta int) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	s, ok := r.db.Students[id]
	if !ok {
		return ErrNotFound
	}
	s.Points += delta
	return nil
}
