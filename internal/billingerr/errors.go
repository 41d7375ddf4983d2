// Package billingerr defines the error kinds every billing operation reports.
//
// Domain packages declare their own snake_case sentinels bound to one of the
// kinds below, so callers can match either the specific failure
// (customerdomain.ErrNotFound) or the broad class (billingerr.ErrNotFound).
package billingerr

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/wastebill/pkg/db"
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid_input")
	ErrTransactionFailure = errors.New("transaction_failed")
)

// Error is a domain sentinel carrying a stable code and its kind.
type Error struct {
	Code string
	Kind error
}

func New(kind error, code string) *Error {
	return &Error{Code: code, Kind: kind}
}

func (e *Error) Error() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindOf returns the kind sentinel err belongs to, or nil.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrInvalidInput):
		return ErrInvalidInput
	case errors.Is(err, ErrTransactionFailure):
		return ErrTransactionFailure
	default:
		return nil
	}
}

// CodeOf returns the most specific code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	if kind := KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal_error"
}

type transactionError struct {
	cause error
}

func (e *transactionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransactionFailure.Error(), e.cause)
}

func (e *transactionError) Is(target error) bool {
	return target == ErrTransactionFailure
}

func (e *transactionError) Unwrap() error {
	return e.cause
}

// Transaction classifies an error that escaped a database transaction.
// Known kinds pass through; duplicate keys become conflicts; anything else
// is reported as a transaction failure with the cause kept for logs.
func Transaction(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	if db.IsDuplicateKeyErr(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return &transactionError{cause: err}
}
