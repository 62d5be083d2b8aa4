package repository

import (
	"context"
	"sort"
	"time"

	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// ClassroomRepository handles classroom data access.
type ClassroomRepository struct {
	db *database.MemoryDB
}

// NewClassroomRepository creates a new ClassroomRepository.
func NewClassroomRepository(db *database.MemoryDB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// GetByID retrieves a classroom by ID.
func (r *ClassroomRepository) GetByID(_ context.Context, id int) (*model.Classroom, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	c, ok := r.db.Classrooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

// List returns all classrooms ordered by grade level then name.
func (r *ClassroomRepository) List(_ context.Context) ([]model.Classroom, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	out := make([]model.Classroom, 0, len(r.db.Classrooms))
	for _, c := range r.db.Classrooms {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GradeLevel != out[j].GradeLevel {
			return out[i].GradeLevel < out[j].GradeLevel
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Create inserts a new classroom and sets its ID.
func (r *ClassroomRepository) Create(_ context.Context, c *model.Classroom) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	c.ID = r.db.NextID("classrooms")
	c.CreatedAt = time.Now().UTC()
	stored := *c
	r.db.Classrooms[c.ID] = &stored
	return nil
}
