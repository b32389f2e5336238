package session

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidStoreType = errors.New("invalid store type")
	ErrVersionConflict  = errors.New("session version conflict")
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyExists    = errors.New("session already exists")
	ErrClosed           = errors.New("session store closed")
)
