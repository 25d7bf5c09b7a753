package common

import (
	"errors"
	"net/http"
)

// AppError pairs an error with the code and status rendered to API clients.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WriteError renders err in the canonical error shape. Errors that do not
// wrap an AppError become an opaque 500.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
}
