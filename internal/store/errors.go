package store

import (
	"errors"
	"fmt"

	"kanban/api/internal/board"
)

var (
	ErrBoardNotFound  = fmt.Errorf("board %w", board.ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", board.ErrNotFound)
	ErrInvalidID      = fmt.Errorf("%w: malformed id", board.ErrValidation)
	ErrDuplicateEmail = errors.New("email already in use")
	ErrStaleRevision  = errors.New("board was changed by someone else")
)
