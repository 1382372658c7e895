// Package qerr holds the coded error type shared by the quote pipeline and its HTTP surface.
package qerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure so the transport can pick an outcome without inspecting messages.
type Code int

const (
	CodeInternal Code = iota
	CodeValidation
	CodeUnavailable
	CodeTimeout
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation"
	case CodeUnavailable:
		return "unavailable"
	case CodeTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a typed pipeline error that carries a stable code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost coded error in the chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	if qe, ok := As(err); ok {
		return qe.Code
	}
	return CodeInternal
}

// IsValidation reports whether err rejects the request rather than failing it.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err) == CodeValidation
}

// HTTPStatus maps an error to the status written by the quote endpoint.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
