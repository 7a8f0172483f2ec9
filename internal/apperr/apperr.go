// Package apperr is the error taxonomy shared by the REST handlers, the socket
// gateway and the message store.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

// InternalMessage is the only text a client ever sees for unclassified failures.
const InternalMessage = "Internal server error"

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any *AppError carrying the same code, so sentinel values such as
// ErrContentEmpty work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error      { return New(CodeValidation, msg) }
func NotFound(msg string) error        { return New(CodeNotFound, msg) }
func Forbidden(msg string) error       { return New(CodeForbidden, msg) }
func Unauthenticated(msg string) error { return New(CodeUnauthenticated, msg) }
func Conflict(msg string) error        { return New(CodeConflict, msg) }

func Internal(cause error) error {
	return Wrap(CodeInternal, InternalMessage, cause)
}

// CodeOf reports the taxonomy code of err, CodeInternal when err is unclassified.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// HasCode reports whether err belongs to the given class.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps err to the REST status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-safe text for err.
func PublicMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Code != CodeInternal {
		return ae.Message
	}
	return InternalMessage
}
