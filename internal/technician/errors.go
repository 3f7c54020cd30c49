package technician

import (
	"errors"
	"fmt"
)

// Kind classifies failures at the directory's operation boundary.
type Kind string

const (
	// KindValidation is detected locally before any request is sent.
	KindValidation Kind = "VALIDATION_REJECTED"
	// KindMutation covers create/update/delete requests that did not succeed.
	KindMutation Kind = "MUTATION_FAILED"
	// KindLoad covers list loads and refetches that did not succeed.
	KindLoad Kind = "LOAD_FAILED"
)

// Messages shown to the operator. They are deliberately generic.
const (
	MsgCreateFailed = "Failed to add technician. Please try again."
	MsgUpdateFailed = "Failed to update technician. Please try again."
	MsgDeleteFailed = "Failed to delete technician. Please try again."
	MsgLoadFailed   = "Error loading technician records. Please try again."
)

// Error standardizes directory failures.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected builds a validation error.
func Rejected(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// MutationFailed wraps a failed create/update/delete.
func MutationFailed(op, message string, err error) error {
	return &Error{Kind: KindMutation, Op: op, Message: message, Err: err}
}

// LoadFailed wraps a failed list load.
func LoadFailed(err error) error {
	return &Error{Kind: KindLoad, Op: "list", Message: MsgLoadFailed, Err: err}
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// UserMessage returns the operator-facing text for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return "Something went wrong. Please try again."
}
