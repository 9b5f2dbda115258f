package search

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter indicates a malformed search parameter.
var ErrInvalidFilter = errors.New("search: invalid filter")

// ServiceError captures a stable error code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return ""
	}
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Unwrap exposes the underlying cause.
func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Code returns the stable error code.
func (e *ServiceError) Code() string {
	if e == nil {
		return ""
	}
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
