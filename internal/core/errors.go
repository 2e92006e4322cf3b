package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the record is absent or outside the caller's scope.
	ErrNotFound = errors.New("record not found")

	// ErrPermissionDenied means the caller is authenticated but may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthenticated means no valid credential was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrEmptyInput means an upload contained no data rows.
	ErrEmptyInput = errors.New("empty file: CSV file is empty")

	// ErrUnknownOwner means the caller's account no longer exists, so
	// records cannot be written in its name. It is an authentication failure.
	ErrUnknownOwner = fmt.Errorf("owner account does not exist: %w", ErrUnauthenticated)
)

// Violation is a single field-level validation failure.
type Violation struct {
	Row     int    `json:"row,omitempty"` // 0 for single-record writes
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Row > 0 {
		return fmt.Sprintf("Row %d: %s %s", v.Row, v.Field, v.Message)
	}
	return fmt.Sprintf("%s %s", v.Field, v.Message)
}

// ValidationError carries the violations reported for a payload or batch.
// Violations may be truncated; Total is the full count.
type ValidationError struct {
	Violations []Violation
	Total      int
}

func (e *ValidationError) Error() string {
	if e.Total == 1 && len(e.Violations) == 1 {
		return "validation failed: " + e.Violations[0].String()
	}
	return fmt.Sprintf("validation failed: %d problem(s)", e.Total)
}

// Messages returns the reported violations as display strings.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.String()
	}
	return out
}

// SchemaError means a CSV upload is missing required columns.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// BadRequestError means a caller-supplied parameter has the wrong shape.
type BadRequestError struct {
	Param   string
	Message string
}

func (e *BadRequestError) Error() string {
	if e.Param == "" {
		return "bad request: " + e.Message
	}
	return fmt.Sprintf("bad request: %s %s", e.Param, e.Message)
}

func badRequest(param, format string, args ...any) error {
	return &BadRequestError{Param: param, Message: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies an error into the caller-visible taxonomy.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindPermissionDenied
	KindUnauthenticated
	KindValidation
	KindSchema
	KindEmptyInput
	KindBadRequest
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindSchema:
		return "schema"
	case KindEmptyInput:
		return "empty_input"
	case KindBadRequest:
		return "bad_request"
	case KindBusy:
		return "busy"
	default:
		return "internal"
	}
}

// KindOf classifies err. Anything unrecognised is KindInternal.
func KindOf(err error) ErrorKind {
	var (
		verr *ValidationError
		serr *SchemaError
		berr *BadRequestError
	)
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrEmptyInput):
		return KindEmptyInput
	case errors.Is(err, ErrIngestBusy):
		return KindBusy
	case errors.As(err, &verr):
		return KindValidation
	case errors.As(err, &serr):
		return KindSchema
	case errors.As(err, &berr):
		return KindBadRequest
	default:
		return KindInternal
	}
}
