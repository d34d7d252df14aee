// Package errors provides domain-specific errors for token counting.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for common domain error conditions.
var (
	ErrNoInput              = errors.New("either text, file, or directory must be provided")
	ErrEncodingNotFound     = errors.New("encoding not found")
	ErrDecode               = errors.New("content is not valid text")
	ErrInvalidRatio         = errors.New("invalid approximation ratio")
	ErrUnknownApproximation = errors.New("unknown approximation method")
	ErrInvalidChunkSize     = errors.New("chunk size must be positive")
	ErrRunNotFound          = errors.New("run not found")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeIO            ErrorCode = "IO"
	CodeDecode        ErrorCode = "DECODE"
	CodeArithmetic    ErrorCode = "ARITHMETIC"
	CodeConfiguration ErrorCode = "CONFIG"
)

// CountError wraps errors with additional context for debugging and handling.
type CountError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *CountError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *CountError) Unwrap() error {
	return e.Cause
}

// NewError creates a new CountError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *CountError {
	return &CountError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
func WithContext(err *CountError, key string, value interface{}) *CountError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// IOError classifies a filesystem error for path. Missing files get CodeNotFound,
// everything else CodeIO.
func IOError(path string, cause error) *CountError {
	code := CodeIO
	message := "failed to read file"
	if errors.Is(cause, fs.ErrNotExist) {
		code = CodeNotFound
		message = "file not found"
	}
	return WithContext(NewError(code, message, cause), "path", path)
}

// CodeOf returns the code of the first CountError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ce *CountError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// Is reports whether err matches target using errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
