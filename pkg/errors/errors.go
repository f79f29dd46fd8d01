package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the stage of a conversion that failed
type ErrorType string

const (
	ErrorTypeImage    ErrorType = "image"
	ErrorTypeTemplate ErrorType = "template"
	ErrorTypeFormat   ErrorType = "format"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error carries the failing stage and the file involved
type Error struct {
	Type ErrorType
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s %s: %v", e.Type, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Type, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with type information. A nil err yields nil.
func New(t ErrorType, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Path: path, Err: err}
}

// Image wraps an image decoding failure
func Image(op, path string, err error) error {
	return New(ErrorTypeImage, op, path, err)
}

// Template wraps a template loading failure
func Template(op, path string, err error) error {
	return New(ErrorTypeTemplate, op, path, err)
}

// Format wraps a malformed checkpoint
func Format(op, path string, err error) error {
	return New(ErrorTypeFormat, op, path, err)
}

// IO wraps a filesystem failure
func IO(op, path string, err error) error {
	return New(ErrorTypeIO, op, path, err)
}

// TypeOf returns the type of the outermost typed error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// ExitCode maps an error to a process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch TypeOf(err) {
	case ErrorTypeImage:
		return 2
	case ErrorTypeTemplate:
		return 3
	case ErrorTypeFormat:
		return 4
	case ErrorTypeIO:
		return 5
	case ErrorTypeConfig:
		return 6
	default:
		return 1
	}
}
