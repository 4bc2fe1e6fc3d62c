package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid        ErrorCode = "invalid"
	ErrorNotFound       ErrorCode = "not_found"
	ErrorUnauthorized   ErrorCode = "unauthorized"
	ErrorNotImplemented ErrorCode = "not_implemented"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewNotImplementedError(msg string) error {
	return &ServiceError{Code: ErrorNotImplemented, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
