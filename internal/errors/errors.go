// Package errors defines the coded engine errors. Public engine entry points
// never return them to callers; they are rendered into report and QA
// warnings, and the CLI prints them with their suggested fixes.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ParseFailed indicates the parser produced no tree at all
	ParseFailed ErrorCode = "PARSE_FAILED"
	// RuleNotFound indicates an unregistered rule or fix id
	RuleNotFound ErrorCode = "RULE_NOT_FOUND"
	// GuidanceUnavailable indicates a guidance document could not be read
	GuidanceUnavailable ErrorCode = "GUIDANCE_UNAVAILABLE"
	// ValidatorTimeout indicates the external type checker timed out
	ValidatorTimeout ErrorCode = "VALIDATOR_TIMEOUT"
	// ValidatorFailed indicates the type checker exited non-zero or could not start
	ValidatorFailed ErrorCode = "VALIDATOR_FAILED"
	// StorageFailure indicates the result store rejected a read or write
	StorageFailure ErrorCode = "STORAGE_FAILURE"
	// ConfigInvalid indicates a configuration or settings file is invalid
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// InstallTool suggests installing a tool
	InstallTool FixActionType = "install-tool"
)

// InstallMethod represents methods for installing tools
type InstallMethod string

const (
	NPM    InstallMethod = "npm"
	PNPM   InstallMethod = "pnpm"
	Manual InstallMethod = "manual"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType   `json:"type"`
	Command     string          `json:"command,omitempty"`
	Safe        bool            `json:"safe,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Methods     []InstallMethod `json:"methods,omitempty"`
}

// EngineError is an engine failure with a stable code and suggestions.
type EngineError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates an EngineError carrying the default suggestions for code.
func New(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *EngineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *EngineError) WithDetails(details interface{}) *EngineError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first EngineError in err's chain, or
// InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return InternalError
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Code == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	RuleNotFound: {
		{
			Type:        RunCommand,
			Command:     "effectlint rules",
			Safe:        true,
			Description: "List the registered rule ids",
		},
	},
	GuidanceUnavailable: {
		{
			Type:        RunCommand,
			Command:     "effectlint guidance ${rule_id}",
			Safe:        true,
			Description: "Check that the guidance document exists and parses",
		},
	},
	ValidatorTimeout: {
		{
			Type:        RunCommand,
			Command:     "effectlint qa --timeout 60s ${manifest}",
			Safe:        true,
			Description: "Retry with a longer type checker timeout",
		},
	},
	ValidatorFailed: {
		{
			Type:        InstallTool,
			Tool:        "typescript",
			Methods:     []InstallMethod{NPM, PNPM},
			Description: "Install the TypeScript compiler (tsc)",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "effectlint config validate",
			Safe:        true,
			Description: "Validate .effectlint/config.json and rules.toml",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
