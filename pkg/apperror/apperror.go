// Package apperror carries the HTTP-facing error taxonomy: every error that
// should reach a client with a specific status and message is an *Error.
package apperror

import (
	"errors"
	"net/http"
)

// MsgInternal is the only message a client ever sees for unexpected failures.
const MsgInternal = "Lỗi máy chủ"

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

func Wrap(status int, msg string, err error) *Error {
	return &Error{Status: status, Message: msg, Err: err}
}

func BadRequest(msg string) *Error   { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error     { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error     { return New(http.StatusConflict, msg) }

func Internal(err error) *Error {
	return Wrap(http.StatusInternalServerError, MsgInternal, err)
}

// StatusOf returns the HTTP status carried by err, 500 for anything else.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message of err. Unknown errors never
// leak their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return MsgInternal
}
