package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "order.CreateFromCart",
				Message: "cannot create order from empty cart",
			},
			expected: "order.CreateFromCart: cannot create order from empty cart",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "order.Cancel",
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "order.Cancel: failed to save: database connection failed",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EINTERNAL,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error",
			err:      &Error{Code: EINVALID, Message: "test"},
			expected: EINVALID,
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("wrapped: %w", &Error{Code: ENOTFOUND, Message: "test"}),
			expected: ENOTFOUND,
		},
		{
			name:     "non-domain error",
			err:      errors.New("some error"),
			expected: EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	const generic = "An internal error occurred. Please try again later."

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error message",
			err:      &Error{Code: ENOTALLOWED, Message: "order with refund(s) cannot be canceled"},
			expected: "order with refund(s) cannot be canceled",
		},
		{
			name:     "internal errors hide details",
			err:      &Error{Code: EINTERNAL, Message: "pg: connection refused"},
			expected: generic,
		},
		{
			name:     "non-domain error",
			err:      errors.New("raw"),
			expected: generic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "NotFound",
			err:         NotFound("order.Retrieve", "order", "order_1"),
			wantCode:    ENOTFOUND,
			wantMessage: "order not found: order_1",
		},
		{
			name:        "NotAllowed",
			err:         NotAllowed("order.Cancel", "nope"),
			wantCode:    ENOTALLOWED,
			wantMessage: "nope",
		},
		{
			name:        "Invalid",
			err:         Invalid("order.CreateFromCart", "empty cart"),
			wantCode:    EINVALID,
			wantMessage: "empty cart",
		},
		{
			name:        "InvalidArgument",
			err:         InvalidArgument("order.CreateFromCart", "bad payment"),
			wantCode:    EINVALIDARG,
			wantMessage: "bad payment",
		},
		{
			name:        "Duplicate",
			err:         Duplicate("order.CreateFromCart", "already exists"),
			wantCode:    EDUPLICATE,
			wantMessage: "already exists",
		},
		{
			name:        "Unexpected",
			err:         Unexpected("order.CreateFromCart", "totals missing"),
			wantCode:    EUNEXPECTED,
			wantMessage: "totals missing",
		},
		{
			name:        "Errorf",
			err:         Errorf(EINVALID, "inventory.confirm", "variant %s is out of stock", "variant_1"),
			wantCode:    EINVALID,
			wantMessage: "variant variant_1 is out of stock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.wantCode {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.wantCode)
			}
			if got := ErrorMessage(tt.err); got != tt.wantMessage {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.wantMessage)
			}
			if !IsCode(tt.err, tt.wantCode) {
				t.Errorf("IsCode(%q) = false, want true", tt.wantCode)
			}
		})
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, EINTERNAL, "op", "msg") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	underlying := errors.New("pg: deadlock detected")
	err := WrapError(underlying, EINTERNAL, "order.Save", "saving order")

	if !errors.Is(err, underlying) {
		t.Error("wrapped error should unwrap to the underlying error")
	}
	if got := ErrorOp(err); got != "order.Save" {
		t.Errorf("ErrorOp() = %q, want %q", got, "order.Save")
	}
}
