package users

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrSelfFollow rejects following oneself.
	ErrSelfFollow = errors.New("users: cannot follow yourself")
	// ErrFollowNotFound indicates an unfollow targeted a relation that does not exist.
	ErrFollowNotFound = errors.New("users: not following user")
)

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
