package app

import (
	"errors"
	"fmt"
	"net/http"

	"kanban/api/internal/auth"
	"kanban/api/internal/board"
	"kanban/api/internal/rbac"
	"kanban/api/internal/report"
	"kanban/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func forbidden(permission rbac.Permission) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"permission": permission})
}

func revisionConflict(current int64) *DomainError {
	return domainError(http.StatusConflict, "REVISION_CONFLICT", store.ErrStaleRevision.Error(), map[string]any{"revision": current})
}

// errInconsistentBoard stops a write that would break the column/task invariant.
var errInconsistentBoard = errors.New("board would become inconsistent")

var errPayloadTooLarge = domainError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)

// mapError translates domain and storage errors into an HTTP status, a stable
// code and a message safe to show to the caller.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return errPayloadTooLarge.Status, errPayloadTooLarge.Code, errPayloadTooLarge.Message, nil
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error(), nil
	case errors.Is(err, board.ErrDuplicateStatus):
		return http.StatusBadRequest, "DUPLICATE_STATUS", err.Error(), nil
	case errors.Is(err, board.ErrColumnNotEmpty):
		return http.StatusBadRequest, "COLUMN_NOT_EMPTY", err.Error(), nil
	case errors.Is(err, board.ErrInvalidColumnSet):
		return http.StatusBadRequest, "INVALID_COLUMN_SET", err.Error(), nil
	case errors.Is(err, board.ErrAlreadyMember):
		return http.StatusBadRequest, "ALREADY_MEMBER", err.Error(), nil
	case errors.Is(err, board.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, store.ErrDuplicateEmail):
		return http.StatusConflict, "DUPLICATE_EMAIL", err.Error(), nil
	case errors.Is(err, store.ErrStaleRevision):
		return http.StatusConflict, "REVISION_CONFLICT", err.Error(), nil
	case errors.Is(err, auth.ErrMalformedIdentity):
		return http.StatusBadRequest, "INVALID_IDENTITY", "Malformed identity", nil
	case errors.Is(err, auth.ErrMissingIdentity), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, report.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
