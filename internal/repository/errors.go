package repository

import "errors"

var (
	// ErrConflict is returned by Save when the store changed since it was loaded.
	ErrConflict = errors.New("store was modified by another process")
	// ErrLocked is returned when the store lock could not be acquired in time.
	ErrLocked = errors.New("store is locked by another process")
	// ErrCorrupt is returned when stored data cannot be decoded.
	ErrCorrupt = errors.New("store is corrupt")
	// ErrSealed is returned when a sealed store is read without the right key.
	ErrSealed = errors.New("store is sealed")
)
