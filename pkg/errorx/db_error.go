package errorx

import (
	"errors"
	"fmt"
	"strings"
)

// UnspecifiedErrorMessage is the message used when the driver error text
// does not embed a "::message::" section.
const UnspecifiedErrorMessage = "Unspecified error"

const messageDelimiter = "::"

// ErrorKind classifies an error raised at the driver boundary.
type ErrorKind int

const (
	// GeneralOperation - connectivity, syntax, permissions, unknown collection type, pool exhaustion...
	GeneralOperation ErrorKind = iota
	// IntegrityViolation - uniqueness, foreign key, check or not-null constraint rejected the operation.
	IntegrityViolation
)

func (k ErrorKind) String() string {
	switch k {
	case IntegrityViolation:
		return "IntegrityViolation"
	default:
		return "GeneralOperationError"
	}
}

// DbError - classified database error.
// It carries the original driver error, the human-readable message extracted from it
// and a short reason describing where the failure happened.
type DbError struct {
	Kind    ErrorKind
	Message string
	Reason  string
	Err     error
}

// NewIntegrityViolation - DbError constructor for constraint violations.
func NewIntegrityViolation(err error, reason string, args ...any) *DbError {
	return newDbError(IntegrityViolation, err, reason, args...)
}

// NewGeneralOperationError - DbError constructor for every other driver failure.
func NewGeneralOperationError(err error, reason string, args ...any) *DbError {
	return newDbError(GeneralOperation, err, reason, args...)
}

func newDbError(kind ErrorKind, err error, reason string, args ...any) *DbError {
	msg := UnspecifiedErrorMessage
	if err != nil {
		msg = ExtractMessage(err.Error())
	}

	return &DbError{
		Kind:    kind,
		Message: msg,
		Reason:  fmt.Sprintf(reason, args...),
		Err:     err,
	}
}

// Error - return the error string.
func (e *DbError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Reason)
}

// Unwrap - return the original driver error.
func (e *DbError) Unwrap() error {
	return e.Err
}

// IsIntegrityViolation reports whether err is (or wraps) a DbError of kind IntegrityViolation.
func IsIntegrityViolation(err error) bool {
	var dbErr *DbError
	return errors.As(err, &dbErr) && dbErr.Kind == IntegrityViolation
}

// IsGeneralOperationError reports whether err is (or wraps) a DbError of kind GeneralOperation.
func IsGeneralOperationError(err error) bool {
	var dbErr *DbError
	return errors.As(err, &dbErr) && dbErr.Kind == GeneralOperation
}

// ExtractMessage returns the text enclosed by the first pair of "::" delimiters,
// e.g. `ORA-00001: ...::Duplicate entry for id 5::...` gives "Duplicate entry for id 5".
// The convention is best effort: without a closed pair, UnspecifiedErrorMessage is returned.
func ExtractMessage(text string) string {
	start := strings.Index(text, messageDelimiter)
	if start < 0 {
		return UnspecifiedErrorMessage
	}

	rest := text[start+len(messageDelimiter):]

	end := strings.Index(rest, messageDelimiter)
	if end < 0 {
		return UnspecifiedErrorMessage
	}

	msg := strings.TrimSpace(rest[:end])
	if msg == "" {
		return UnspecifiedErrorMessage
	}

	return msg
}
