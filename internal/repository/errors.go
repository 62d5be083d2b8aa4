package repository

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("user with this username already exists")
)
