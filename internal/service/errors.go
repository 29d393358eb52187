package service

import "errors"

var (
	// ErrInvalidIdentity is returned for empty identities.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidSecret is returned when a secret is not valid Base32 or uses
	// generation parameters the store is not configured for.
	ErrInvalidSecret = errors.New("invalid secret")
	// ErrDuplicateIdentity is returned by Add when the identity is already stored.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrNotFound is returned when no record has the requested identity.
	ErrNotFound = errors.New("identity not found")
	// ErrAmbiguousIdentity is returned when case folding maps an identity to
	// more than one stored record.
	ErrAmbiguousIdentity = errors.New("identity matches several records")
	// ErrPersistence wraps failures of the underlying repository.
	ErrPersistence = errors.New("persistence error")
)
