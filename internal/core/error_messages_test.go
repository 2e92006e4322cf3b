package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("pq: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "unique constraint maps correctly",
			err:         errors.New("ERROR: unique constraint violated"),
			wantCode:    "DB002",
			wantMessage: "This value must be unique but already exists",
		},
		{
			name:        "foreign key maps correctly",
			err:         errors.New("violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("file too large: 200MB exceeds limit"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "check constraint maps correctly",
			err:         errors.New(`ERROR: new row for relation "farmer_records" violates check constraint "farmer_records_area_acres_check"`),
			wantCode:    "DB008",
			wantMessage: "A value is outside the allowed range",
		},
		{
			name:        "not found maps by kind",
			err:         fmt.Errorf("get record 7: %w", ErrNotFound),
			wantCode:    "REC001",
			wantMessage: "Record not found",
		},
		{
			name:        "permission denied maps by kind",
			err:         ErrPermissionDenied,
			wantCode:    "AUTH002",
			wantMessage: "You do not have permission to perform this action",
		},
		{
			name:        "validation error maps by kind",
			err:         &ValidationError{Violations: []Violation{{Field: "yield_kg", Message: "must be positive"}}, Total: 1},
			wantCode:    "VAL001",
			wantMessage: "Some fields failed validation",
		},
		{
			name:        "schema error maps by kind",
			err:         &SchemaError{Missing: []string{"latitude"}},
			wantCode:    "VAL004",
			wantMessage: "Required column is missing from CSV",
		},
		{
			name:        "unknown owner has its own code",
			err:         fmt.Errorf("insert record: %w", ErrUnknownOwner),
			wantCode:    "AUTH003",
			wantMessage: "Your account no longer exists",
		},
		{
			name:        "busy maps by kind",
			err:         fmt.Errorf("ingest: %w", ErrIngestBusy),
			wantCode:    "UPL002",
			wantMessage: "System is busy processing other uploads",
		},
		{
			name:        "bad request maps by kind",
			err:         badRequest("page", "must be at least 1"),
			wantCode:    "REQ001",
			wantMessage: "The request has an invalid parameter",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	err := errors.New("duplicate key value violates")
	result := FormatUserError(err)

	expected := "A record with this ID already exists (Code: DB001). Please try again; if the problem persists contact support"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}
