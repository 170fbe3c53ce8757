package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. A *ServiceError matches its kind with errors.Is.
var (
	ErrOrderGetting    = errors.New("order getting error")
	ErrOrderCreation   = errors.New("order creation error")
	ErrOrderUpdate     = errors.New("order update error")
	ErrOrderDeleting   = errors.New("order deleting error")
	ErrInternalRequest = errors.New("internal request error")

	ErrCarGetting  = errors.New("car getting error")
	ErrCarCreation = errors.New("car creation error")
	ErrCarUpdate   = errors.New("car update error")
	ErrCarDeleting = errors.New("car deleting error")

	ErrUserGetting      = errors.New("user getting error")
	ErrUserCreation     = errors.New("user creation error")
	ErrUserUpdate       = errors.New("user update error")
	ErrUserDeleting     = errors.New("user deleting error")
	ErrUserLogin        = errors.New("user login error")
	ErrUserVerification = errors.New("user verification error")
)

// ServiceError is a failure with a user-visible message and the HTTP status
// code it maps to.
type ServiceError struct {
	Kind       error
	Message    string
	StatusCode int
	Err        error
}

func NewError(kind error, statusCode int, format string, args ...any) *ServiceError {
	return &ServiceError{Kind: kind, Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Is(target error) bool {
	return target == e.Kind
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Rewrap relabels err as kind, keeping its status code and message when err
// is already a *ServiceError.
func Rewrap(kind error, err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return &ServiceError{Kind: kind, Message: se.Message, StatusCode: se.StatusCode, Err: err}
	}
	return &ServiceError{Kind: kind, Message: err.Error(), StatusCode: http.StatusInternalServerError, Err: err}
}

// StatusCode returns the HTTP status err maps to.
func StatusCode(err error) int {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return http.StatusInternalServerError
}
