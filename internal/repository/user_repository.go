package repository

import (
	"context"
	"strings"
	"time"

	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// UserRepository handles account data access.
type UserRepository struct {
	db *database.MemoryDB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.MemoryDB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id int) (*model.User, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	u, ok := r.db.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

// GetByUsername retrieves a user by username, case-insensitively.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	for _, u := range r.db.Users {
		if strings.EqualFold(u.Username, username) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Create inserts a new user and sets its ID.
func (r *UserRepository) Create(_ context.Context, u *model.User) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	for _, existing := range r.db.Users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrDuplicateUsername
		}
	}
	u.ID = r.db.NextID("users")
	u.CreatedAt = time.Now().UTC()
	stored := *u
	r.db.Users[u.ID] = &stored
	return nil
}
