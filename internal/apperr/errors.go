// Package apperr defines the error taxonomy shared by the service and
// HTTP layers: validation failures are rejected before any transaction
// opens, not-found and conflict errors carry the offending key, and
// transaction errors always wrap the cause that triggered the rollback.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Msg    string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
}

// NewValidation creates a ValidationError with an optional field list.
func NewValidation(msg string, fields ...string) *ValidationError {
	return &ValidationError{Msg: msg, Fields: fields}
}

// NotFoundError reports a referenced key that does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

// NewNotFound creates a NotFoundError for the given kind and key.
func NewNotFound(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// ConflictError reports a duplicate unique key or a resource in a state
// that refuses the requested operation.
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Kind, e.Key)
}

// NewConflict creates a ConflictError for the given kind and key.
func NewConflict(kind, key string) *ConflictError {
	return &ConflictError{Kind: kind, Key: key}
}

// TransactionError wraps any failure inside an open transaction. The
// transaction has been rolled back by the time this error is returned;
// Unwrap exposes the triggering cause to the caller.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// NewTransaction wraps err as a TransactionError for the named operation.
func NewTransaction(op string, err error) *TransactionError {
	return &TransactionError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
