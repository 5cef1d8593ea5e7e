package core

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrForbidden is returned whenever the authorization policy denies an action.
	ErrForbidden = errors.New("forbidden")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fld := range err.Fields {
		msgs = append(msgs, fld.Field+": "+fld.Error)
	}
	return strings.Join(msgs, "; ")
}

// ForbiddenError carries the human readable reason of an authorization denial.
type ForbiddenError struct {
	Message string
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{Message: msg}
}

func (err ForbiddenError) Error() string {
	if err.Message == "" {
		return ErrForbidden.Error()
	}
	return err.Message
}

// Cause makes errors.Cause(err) == ErrForbidden hold for every ForbiddenError.
func (err ForbiddenError) Cause() error { return ErrForbidden }

// ExternalError wraps a failure of an external collaborator (eg. the blob store).
type ExternalError struct {
	Op  string
	Err error
}

func NewExternalError(op string, err error) error {
	return &ExternalError{Op: op, Err: err}
}

func (err ExternalError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err ExternalError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
