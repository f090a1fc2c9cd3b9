package types

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes surfaced to callers.
const (
	CodeVerticalNotConfigured = "VERTICAL_NOT_CONFIGURED"
	CodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	CodeInvalidEntity         = "INVALID_ENTITY"
	CodeInvalidRequest        = "INVALID_REQUEST"
)

// ErrVerticalNotConfigured is returned when policy resolution finds no persona
// for a (vertical, sub-vertical, region) combination. Never defaulted: a silent
// fallback to another persona's thresholds would corrupt decisions.
var ErrVerticalNotConfigured = &CodedError{
	Code:    CodeVerticalNotConfigured,
	Message: "no persona configured for this vertical combination",
}

// CodedError pairs a stable machine-readable code with a human-readable
// message. Every caller-visible failure path carries one.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Is matches two CodedErrors by code, so sentinel comparisons with
// errors.Is work across wrapping.
func (e *CodedError) Is(target error) bool {
	var coded *CodedError
	if errors.As(target, &coded) {
		return e.Code == coded.Code
	}
	return false
}

// StorageUnavailable wraps a storage I/O failure with its stable code.
func StorageUnavailable(err error) *CodedError {
	return &CodedError{
		Code:    CodeStorageUnavailable,
		Message: "storage operation failed",
		Err:     err,
	}
}

// InvalidEntity reports a required policy field missing from the entity.
// The engine fails fast rather than defaulting a factor score to zero.
func InvalidEntity(field string) *CodedError {
	return &CodedError{
		Code:    CodeInvalidEntity,
		Message: fmt.Sprintf("required field %q missing from entity", field),
	}
}

// InvalidRequest reports a malformed or incomplete caller request.
func InvalidRequest(message string) *CodedError {
	return &CodedError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// ErrorCode extracts the stable code from an error chain, or "INTERNAL"
// when the error carries no code.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return "INTERNAL"
}
