package ierr

import (
	"errors"
)

type ErrorCode string

const (
	ErrorCodeInvalidArgument   ErrorCode = "InvalidArgument"
	ErrorCodeNotFound          ErrorCode = "NotFound"
	ErrorCodePermissionDenied  ErrorCode = "PermissionDenied"
	ErrorCodeUnauthenticated   ErrorCode = "Unauthenticated"
	ErrorCodeResourceExhausted ErrorCode = "ResourceExhausted"
	ErrorCodeUnavailable       ErrorCode = "Unavailable"
	ErrorCodeInternal          ErrorCode = "Internal"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	cause error
}

func New(code ErrorCode, cause error) Error {
	return Error{
		Code:    code,
		Message: cause.Error(),
		cause:   cause,
	}
}

func (e Error) Error() string {
	return string(e.Code) + ": " + e.cause.Error()
}

func (e Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code carried by err, or ErrorCodeInternal when err is
// not an Error.
func CodeOf(err error) ErrorCode {
	var e Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrorCodeInternal
}
