package apperror

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "InvalidExpense wraps ErrInvalidExpense",
			err:       InvalidExpense("amount", "amount must be greater than 0"),
			target:    ErrInvalidExpense,
			wantMatch: true,
		},
		{
			name:      "SplitMismatch wraps ErrSplitMismatch",
			err:       SplitMismatch(decimal.NewFromInt(99), decimal.NewFromInt(100), "amounts"),
			target:    ErrSplitMismatch,
			wantMatch: true,
		},
		{
			name:      "wrapped NotFound still matches",
			err:       fmt.Errorf("get expense: %w", NotFound("expense", "abc")),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "AlreadySettled does not match Forbidden",
			err:       AlreadySettled("b1"),
			target:    ErrForbidden,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestSplitMismatchDelta(t *testing.T) {
	err := SplitMismatch(decimal.NewFromInt(99), decimal.NewFromInt(100), "amounts")

	if !err.Delta.Equal(decimal.NewFromInt(-1)) {
		t.Errorf("Delta = %s, want -1", err.Delta)
	}
	want := "split_mismatch: participant amounts (99.00) must sum to 100.00"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{InvalidExpense("description", "description is required"), connect.CodeInvalidArgument},
		{SplitMismatch(decimal.Zero, decimal.NewFromInt(1), "amounts"), connect.CodeInvalidArgument},
		{NotFound("user", "u1"), connect.CodeNotFound},
		{Forbidden("only the creator can delete"), connect.CodePermissionDenied},
		{AlreadySettled("b1"), connect.CodeFailedPrecondition},
		{Conflict("user", "u1"), connect.CodeAlreadyExists},
		{errors.New("disk on fire"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestToConnectHidesInternalErrors(t *testing.T) {
	err := ToConnect(errors.New("failed to insert balance: constraint failed"))

	if err.Code() != connect.CodeInternal {
		t.Fatalf("code = %v, want Internal", err.Code())
	}
	if err.Message() != "an internal error occurred" {
		t.Errorf("message = %q, leaked internal detail", err.Message())
	}
}
