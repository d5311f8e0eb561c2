package board

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrDuplicateStatus  = errors.New("duplicate column status")
	ErrColumnNotEmpty   = errors.New("column not empty")
	ErrInvalidColumnSet = errors.New("invalid column set")
	ErrAlreadyMember    = errors.New("already a member")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
