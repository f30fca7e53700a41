package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These describe the kind of business-rule violation and determine how the
// calling layer should respond.
const (
	ENOTFOUND   = "not_found"        // Entity absent or mismatched foreign key
	ENOTALLOWED = "not_allowed"      // Valid entity, invalid state transition
	EINVALID    = "invalid_data"     // Caller-supplied data fails a business precondition
	EINVALIDARG = "invalid_argument" // Caller-supplied argument fails a business precondition
	EDUPLICATE  = "duplicate"        // Uniqueness violation (e.g. order already exists for cart)
	EUNEXPECTED = "unexpected_state" // Internal invariant violated
	EINTERNAL   = "internal"         // Infrastructure failure (hide details)
)

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "order.cancel").
	// Used for debugging and logging, not shown to users.
	Op string

	// Err is the underlying error, if any. Used for error wrapping.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for nil or non-domain errors.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from an error.
// For internal errors, returns a generic message to avoid leaking details.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}

	return "An internal error occurred. Please try again later."
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	return ""
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "order.create", "invalid quantity: %d", qty)
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Preserves the underlying error for logging while providing structure.
// Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("order.retrieve", "order", orderID)
func NotFound(op, resource, identifier string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

// NotAllowed creates a not allowed error for an invalid state transition.
// Example: domain.NotAllowed("order.cancel", "order with refund(s) cannot be canceled")
func NotAllowed(op, message string) error {
	return &Error{
		Code:    ENOTALLOWED,
		Op:      op,
		Message: message,
	}
}

// Invalid creates a validation error for caller-supplied data.
// Example: domain.Invalid("order.create_from_cart", "cannot create order from empty cart")
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// InvalidArgument creates an error for a caller-supplied argument that fails
// a business precondition.
func InvalidArgument(op, message string) error {
	return &Error{
		Code:    EINVALIDARG,
		Op:      op,
		Message: message,
	}
}

// Duplicate creates a uniqueness violation error.
// Example: domain.Duplicate("order.create_from_cart", "order from cart already exists")
func Duplicate(op, message string) error {
	return &Error{
		Code:    EDUPLICATE,
		Op:      op,
		Message: message,
	}
}

// Unexpected creates an unexpected state error for a violated internal invariant.
func Unexpected(op, message string) error {
	return &Error{
		Code:    EUNEXPECTED,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error (wraps underlying error).
// The message shown to users will be generic; the underlying error is for logging.
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
