package service

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrStreamNotFound      = errors.New("stream not found")
	ErrBetNotFound         = errors.New("bet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceLimit        = errors.New("balance limit exceeded")
	ErrBetAlreadySettled   = errors.New("bet already settled")
	ErrForbidden           = errors.New("forbidden")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAlreadyFriends      = errors.New("already friends")
	ErrEmptyMessage        = errors.New("empty message")
	ErrNoStats             = errors.New("no stats for stream")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem of one request.
type ValidationError struct {
	Message string
	Errors  []FieldError
}

func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Err returns e when it holds at least one field error.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func newValidation(message string) *ValidationError {
	return &ValidationError{Message: message}
}
