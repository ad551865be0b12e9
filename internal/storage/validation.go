package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidStatus    = errors.New("invalid queue status")
	ErrInvalidExpense   = errors.New("invalid expense")
	ErrInvalidQueueItem = errors.New("invalid queue item")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateExpense(record *model.ExpenseRecord) error {
	if record == nil {
		return fmt.Errorf("%w: expense", ErrNilParameter)
	}
	switch {
	case strings.TrimSpace(record.ID) == "":
		return fmt.Errorf("%w: missing ID", ErrInvalidExpense)
	case strings.TrimSpace(record.OwnerID) == "":
		return fmt.Errorf("%w: missing owner", ErrInvalidExpense)
	case !record.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidExpense, record.Amount)
	case record.Currency == "":
		return fmt.Errorf("%w: missing currency", ErrInvalidExpense)
	case record.PaymentMethod == "":
		return fmt.Errorf("%w: missing payment method", ErrInvalidExpense)
	case record.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidExpense)
	}
	return nil
}

func validateQueueItem(item *model.QueueItem) error {
	if item == nil {
		return fmt.Errorf("%w: queue item", ErrNilParameter)
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidQueueItem)
	}
	if strings.TrimSpace(item.ChannelIdentity) == "" {
		return fmt.Errorf("%w: missing channel identity", ErrInvalidQueueItem)
	}
	if !item.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, item.Status)
	}
	if item.RetryCount < 0 {
		return fmt.Errorf("%w: negative retry count", ErrInvalidQueueItem)
	}
	return nil
}
