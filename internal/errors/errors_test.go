package errors

import (
	"fmt"
	"testing"
)

func TestLeitnerError_Error(t *testing.T) {
	err := &LeitnerError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "card not found",
	}

	expected := "NOT_FOUND: card not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("name is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "name is required" {
		t.Errorf("Message = %q, want %q", err.Message, "name is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("deck", "BioBox")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Message != "deck not found: BioBox" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["identifier"] != "BioBox" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "BioBox")
	}
}

func TestNewNameAlreadyExists(t *testing.T) {
	err := NewNameAlreadyExists("card", "cell")

	if err.Code != ErrNameAlreadyExists {
		t.Errorf("Code = %q, want %q", err.Code, ErrNameAlreadyExists)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
	if err.Details["name"] != "cell" {
		t.Errorf("Details[name] = %v, want %q", err.Details["name"], "cell")
	}
}

func TestNewNotStarted(t *testing.T) {
	err := NewNotStarted("BioBoxLeitner")

	if err.Code != ErrNotStarted {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotStarted)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewEmptyBox(t *testing.T) {
	tests := []struct {
		box     string
		message string
	}{
		{"Box 3", "Box 3: nothing to review"},
		{"", "all boxes: nothing to review"},
	}

	for _, tt := range tests {
		err := NewEmptyBox(tt.box)
		if err.Code != ErrEmptyBox {
			t.Errorf("Code = %q, want %q", err.Code, ErrEmptyBox)
		}
		if err.Status != 422 {
			t.Errorf("Status = %d, want 422", err.Status)
		}
		if err.Message != tt.message {
			t.Errorf("Message = %q, want %q", err.Message, tt.message)
		}
	}
}

func TestNewIntegrity(t *testing.T) {
	err := NewIntegrity("session vanished after save")

	if err.Code != ErrIntegrity {
		t.Errorf("Code = %q, want %q", err.Code, ErrIntegrity)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Message != "learning could not be started: session vanished after save" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewEmptyBox("Box 1"), ErrEmptyBox, true},
		{"different code", NewEmptyBox("Box 1"), ErrNotFound, false},
		{"wrapped", fmt.Errorf("open: %w", NewIntegrity("x")), ErrIntegrity, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
