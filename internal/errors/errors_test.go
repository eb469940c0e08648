package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("exit status 2")
	err := New(ValidatorFailed, "tsc failed", cause)

	if err.Code != ValidatorFailed {
		t.Errorf("Code = %v, want %v", err.Code, ValidatorFailed)
	}
	if err.Message != "tsc failed" {
		t.Errorf("Message = %q, want %q", err.Message, "tsc failed")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
}

func TestEngineError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      GuidanceUnavailable,
			message:   "guidance for node-fs",
			cause:     errors.New("permission denied"),
			wantParts: []string{"GUIDANCE_UNAVAILABLE", "guidance for node-fs", "permission denied"},
		},
		{
			name:      "without cause",
			code:      RuleNotFound,
			message:   "rule 'foo' not found",
			cause:     nil,
			wantParts: []string{"RULE_NOT_FOUND", "rule 'foo' not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.code, tt.message, tt.cause).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(InternalError, "something went wrong", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	if Newf(ValidatorTimeout, "after %s", "30s").Unwrap() != nil {
		t.Errorf("Unwrap() on error without cause should return nil")
	}
}

func TestEngineError_WithDetails(t *testing.T) {
	err := Newf(StorageFailure, "insert failed")
	result := err.WithDetails(map[string]string{"table": "qa_items"})

	if result != err {
		t.Error("WithDetails should return the same error for chaining")
	}
	if err.Details == nil {
		t.Error("Details should be set")
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("qa item a: %w", Newf(ValidatorTimeout, "tsc timed out"))

	if got := CodeOf(wrapped); got != ValidatorTimeout {
		t.Errorf("CodeOf(wrapped) = %v, want %v", got, ValidatorTimeout)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
	if !Is(wrapped, ValidatorTimeout) {
		t.Error("Is(wrapped, ValidatorTimeout) = false")
	}
	if Is(wrapped, ValidatorFailed) {
		t.Error("Is(wrapped, ValidatorFailed) = true")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	tests := []struct {
		code    ErrorCode
		wantNil bool
		wantLen int
	}{
		{RuleNotFound, false, 1},
		{GuidanceUnavailable, false, 1},
		{ValidatorTimeout, false, 1},
		{ValidatorFailed, false, 1},
		{ConfigInvalid, false, 1},
		{ParseFailed, true, 0},
		{InternalError, true, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fixes := GetSuggestedFixes(tt.code)

			if tt.wantNil && fixes != nil {
				t.Errorf("GetSuggestedFixes(%v) = %v, want nil", tt.code, fixes)
			}
			if !tt.wantNil && len(fixes) != tt.wantLen {
				t.Errorf("GetSuggestedFixes(%v) len = %d, want %d", tt.code, len(fixes), tt.wantLen)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ParseFailed,
		RuleNotFound,
		GuidanceUnavailable,
		ValidatorTimeout,
		ValidatorFailed,
		StorageFailure,
		ConfigInvalid,
		InternalError,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %v", code)
		}
		seen[code] = true
		if string(code) == "" {
			t.Error("Error code should not be empty")
		}
	}
}

func TestErrorActionsMap(t *testing.T) {
	for code, fixes := range ErrorActions {
		if len(fixes) == 0 {
			t.Errorf("ErrorActions[%v] has no fix actions", code)
		}
		for i, fix := range fixes {
			if fix.Type == "" {
				t.Errorf("ErrorActions[%v][%d].Type is empty", code, i)
			}
		}
	}
}
