// Package apperror defines the error kinds shared by the calculator, storage and service layers.
//
// Every failure that reaches a caller carries one of the sentinel kinds below so handlers can
// map it to a transport code with errors.Is, regardless of how many times it was wrapped.
package apperror

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidExpense  = errors.New("invalid_expense")
	ErrSplitMismatch   = errors.New("split_mismatch")
	ErrNotFound        = errors.New("not_found")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadySettled  = errors.New("already_settled")
	ErrInvalidArgument = errors.New("invalid_argument")
	ErrConflict        = errors.New("conflict")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // human-readable message
	Field   string // optional: input field at fault

	// Delta is set for split mismatches: sum of shares minus the expected total.
	Delta decimal.Decimal
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidExpense reports malformed or missing expense input.
func InvalidExpense(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidExpense,
		Message: message,
		Field:   field,
	}
}

// SplitMismatch reports shares that do not reconcile with the expected total.
func SplitMismatch(got, want decimal.Decimal, unit string) *AppError {
	return &AppError{
		Err: ErrSplitMismatch,
		Message: fmt.Sprintf("participant %s (%s) must sum to %s",
			unit, got.StringFixed(2), want.StringFixed(2)),
		Field: "participants",
		Delta: got.Sub(want),
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Forbidden reports that the actor lacks permission for the action.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func AlreadySettled(balanceID string) *AppError {
	return &AppError{
		Err:     ErrAlreadySettled,
		Message: fmt.Sprintf("balance %s is already settled", balanceID),
	}
}

func InvalidArgument(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidArgument,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Code maps an error kind to a connect status code.
func Code(err error) connect.Code {
	switch {
	case errors.Is(err, ErrInvalidExpense),
		errors.Is(err, ErrSplitMismatch),
		errors.Is(err, ErrInvalidArgument):
		return connect.CodeInvalidArgument
	case errors.Is(err, ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ErrForbidden):
		return connect.CodePermissionDenied
	case errors.Is(err, ErrAlreadySettled):
		return connect.CodeFailedPrecondition
	case errors.Is(err, ErrConflict):
		return connect.CodeAlreadyExists
	default:
		return connect.CodeInternal
	}
}

// ToConnect converts err into a *connect.Error. Errors without a known kind become Internal
// with a generic message so storage details never leak to callers.
func ToConnect(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return connect.NewError(Code(appErr), appErr)
	}
	return connect.NewError(connect.CodeInternal, errors.New("an internal error occurred"))
}
