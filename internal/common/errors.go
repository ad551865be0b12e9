// Package common provides shared error types, retry and logging helpers.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Messaging errors.
	ErrSendFailed  = errors.New("message send failed")
	ErrMediaFetch  = errors.New("media fetch failed")
	ErrMediaTooBig = errors.New("media exceeds size limit")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput rejects malformed operator input.
	ErrInvalidInput = errors.New("invalid input")
)

// RejectionKind names the reason an inbound message was turned away.
type RejectionKind string

// Rejection kinds. Each maps to exactly one explanatory reply.
const (
	RejectUnregistered         RejectionKind = "unregistered"
	RejectUnparseableText      RejectionKind = "unparseable_text"
	RejectUnsupportedMedia     RejectionKind = "unsupported_media"
	RejectUnreadableReceipt    RejectionKind = "unreadable_receipt"
	RejectIncompleteExtraction RejectionKind = "incomplete_extraction"
	RejectEmptyMessage         RejectionKind = "empty_message"
)

// RejectionError is a business outcome: the message was understood well
// enough to know it cannot become an expense. It completes the queue item
// instead of retrying it.
type RejectionError struct {
	Err  error
	Kind RejectionKind
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// NewRejection creates a rejection of the given kind.
func NewRejection(kind RejectionKind, err error) error {
	return &RejectionError{Kind: kind, Err: err}
}

// IsRejection reports whether err (or anything it wraps) is a RejectionError.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// RejectionKindOf returns the kind of the first RejectionError in err's chain.
func RejectionKindOf(err error) (RejectionKind, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Kind, true
	}
	return "", false
}

// UserError represents an error that should be shown to an operator.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
