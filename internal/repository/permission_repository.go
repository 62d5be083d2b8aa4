package repository

import (
	"context"

	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/model"
)

// PermissionRepository stores event permission grants per student.
type PermissionRepository struct {
	db *database.MemoryDB
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(db *database.MemoryDB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Get returns the student's grant, or ErrNotFound if none was ever issued.
func (r *PermissionRepository) Get(_ context.Context, studentID int) (*model.PermissionGrant, error) {
	r.db.Mu.RLock()
	defer r.db.Mu.RUnlock()
	g, ok := r.db.Grants[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGrant(g), nil
}

// Upsert replaces the student's grant.
func (r *PermissionRepository) Upsert(_ context.Context, studentID int, g model.PermissionGrant) error {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	r.db.Grants[studentID] = copyGrant(&g)
	return nil
}

// Deactivate marks the student's grant as revoked.
func (r *PermissionRepository) Deactivate(_ context.Context, studentID int) (*model.PermissionGrant, error) {
	r.db.Mu.Lock()
	defer r.db.Mu.Unlock()
	g, ok := r.db.Grants[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	g.IsActive = false
	return copyGrant(g), nil
}

func copyGrant(g *model.PermissionGrant) *model.PermissionGrant {
	out := *g
	if g.ExpiresAt != nil {
		t := *g.ExpiresAt
		out.ExpiresAt = &t
	}
	if g.Notes != nil {
		n := *g.Notes
		out.Notes = &n
	}
	return &out
}
