package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Leitner error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrNotStarted        ErrorCode = "NOT_STARTED"         // 409
	ErrEmptyBox          ErrorCode = "EMPTY_BOX"           // 422
	ErrIntegrity         ErrorCode = "INTEGRITY"           // 500
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// LeitnerError represents a structured error with code, status, and details.
type LeitnerError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *LeitnerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LeitnerError {
	return &LeitnerError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing card, deck or learn session.
// kind is a short noun such as "card" or "deck".
func NewNotFound(kind, identifier string) *LeitnerError {
	return &LeitnerError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions.
func NewNameAlreadyExists(kind, name string) *LeitnerError {
	return &LeitnerError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("%s with name %q already exists", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewNotStarted creates a 409 error when a pass operation is requested
// for a session that has no active pass.
func NewNotStarted(session string) *LeitnerError {
	return &LeitnerError{
		Code:    ErrNotStarted,
		Status:  409,
		Message: fmt.Sprintf("no active pass for learn session %q; start one first", session),
		Details: map[string]any{"session": session},
	}
}

// NewEmptyBox creates a 422 error when the review list for a box is empty.
// This is an expected, user-facing condition: nothing to review.
func NewEmptyBox(box string) *LeitnerError {
	label := box
	if label == "" {
		label = "all boxes"
	}
	return &LeitnerError{
		Code:    ErrEmptyBox,
		Status:  422,
		Message: fmt.Sprintf("%s: nothing to review", label),
		Details: map[string]any{"box": box},
	}
}

// NewIntegrity creates a 500 error for a broken persistence layer.
// Learning cannot be started when this is returned.
func NewIntegrity(msg string) *LeitnerError {
	return &LeitnerError{
		Code:    ErrIntegrity,
		Status:  500,
		Message: "learning could not be started: " + msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *LeitnerError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &LeitnerError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is a LeitnerError with the given code.
func Is(err error, code ErrorCode) bool {
	var lErr *LeitnerError
	if stderrors.As(err, &lErr) {
		return lErr.Code == code
	}
	return false
}
