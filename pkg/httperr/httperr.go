// Package httperr carries the HTTP meaning of request errors through service
// layers.
package httperr

import (
	"errors"
	"net/http"
)

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

// ValidationError is a well-formed request whose content was rejected.
// Items holds per-item messages keyed by item index.
type ValidationError struct {
	msg   string
	Items map[int]string
}

func (e *ValidationError) Error() string { return e.msg }

func NewValidation(msg string, items map[int]string) error {
	return &ValidationError{msg: msg, Items: items}
}

func IsValidation(err error) bool {
	_, ok := errors.AsType[*ValidationError](err)
	return ok
}

// Status maps err to a response status; unknown errors are internal.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsBadRequest(err):
		return http.StatusBadRequest
	case IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
