package repository

import "errors"

var (
	// ErrNotFound indica que el registro referenciado no existe.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indica una violación de unicidad en un insert.
	ErrConflict = errors.New("record already exists")
)
