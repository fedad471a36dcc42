package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeConfiguration     ErrorType = "CONFIGURATION"
	ErrorTypeMediaOpen         ErrorType = "MEDIA_OPEN"
	ErrorTypeUnsupportedCodec  ErrorType = "UNSUPPORTED_CODEC"
	ErrorTypeUnsupportedFormat ErrorType = "UNSUPPORTED_FORMAT"
	ErrorTypeDecode            ErrorType = "DECODE"
	ErrorTypeInvalidRate       ErrorType = "INVALID_RATE"
	ErrorTypeIO                ErrorType = "IO"
	ErrorTypeInternal          ErrorType = "INTERNAL_ERROR"
)

// AppError represents an application error with additional context.
// Location is the file:line that raised it.
type AppError struct {
	Type     ErrorType              `json:"type"`
	Message  string                 `json:"message"`
	Location string                 `json:"location,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Err      error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.Location != "" {
		msg = e.Location + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError located at the caller.
func New(errType ErrorType, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:     errType,
		Message:  fmt.Sprintf(format, args...),
		Location: caller(2),
	}
}

// Wrap wraps an existing error, located at the caller.
func Wrap(err error, errType ErrorType, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:     errType,
		Message:  fmt.Sprintf(format, args...),
		Location: caller(2),
		Err:      err,
	}
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// IsAppError checks if an error is, or wraps, an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the outermost AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}
