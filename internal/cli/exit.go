package cli

import (
	"errors"

	"github.com/atinyakov/totpkeeper/internal/service"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNotFound    = 2
	ExitInvalid     = 3
	ExitPersistence = 4
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, service.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, service.ErrInvalidSecret),
		errors.Is(err, service.ErrDuplicateIdentity),
		errors.Is(err, service.ErrInvalidIdentity),
		errors.Is(err, service.ErrAmbiguousIdentity),
		errors.Is(err, ErrInvalidSelection):
		return ExitInvalid
	case errors.Is(err, service.ErrPersistence):
		return ExitPersistence
	default:
		return ExitFailure
	}
}
