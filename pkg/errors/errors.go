package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error shape. Code is a stable machine readable string,
// Status the HTTP status the handler layer should answer with. The wrapped
// cause stays out of responses and only reaches the logs.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error with no underlying cause.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error that carries err as its cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Clone copies base and overrides its message when one is given. Services use
// it to put a request specific message on a shared sentinel.
func Clone(base *Error, message string) *Error {
	if base == nil {
		return nil
	}
	out := *base
	if message != "" {
		out.Message = message
	}
	return &out
}

// FromError resolves any error to an *Error. Unknown errors map to
// ErrInternal so nothing leaks raw cause text to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

var (
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid credentials")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss never reaches a client. The cache service returns it so
	// callers can tell an absent entry from a Redis failure.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache entry not found")
)
