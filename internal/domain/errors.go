package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// ErrConcurrentWrite is a conflict with a concurrent transaction; the request may be retried
	ErrConcurrentWrite = errors.New("concurrent write, retry the request")
)

// FieldError describes a single invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input fails server-side validation
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError is returned when the external image store fails; the write is aborted
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("image upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// StorageError wraps an underlying persistence failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
