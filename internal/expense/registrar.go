// Package expense assembles canonical expense records and persists them.
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

// Registration is the result of one Register call. Saved is false when the
// record could not be persisted; Err carries the cause.
type Registration struct {
	Err    error
	Record model.ExpenseRecord
	Saved  bool
}

// Registrar turns an extracted, inferred expense into a stored record.
type Registrar struct {
	store  service.ExpenseStore
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
	newID  func() string
}

// NewRegistrar creates a Registrar. Bare calendar dates are resolved in loc.
func NewRegistrar(store service.ExpenseStore, logger *slog.Logger, loc *time.Location) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Registrar{
		store:  store,
		logger: logger,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Register builds the record and saves it exactly once. Persistence failures
// are reported in the Registration rather than returned.
func (r *Registrar) Register(ctx context.Context, ownerID string, extracted model.ExtractedExpense, inferred model.Inferred) Registration {
	now := r.now().In(r.loc)

	record := model.ExpenseRecord{
		ID:                  r.newID(),
		OwnerID:             ownerID,
		Amount:              extracted.Amount,
		Category:            inferred.CategoryID,
		Subcategory:         inferred.SubcategoryID,
		Description:         extracted.Description,
		Date:                ResolveDate(extracted.Date, now),
		PaymentMethod:       nonEmpty(inferred.PaymentMethod, model.DefaultPaymentMethod),
		Currency:            nonEmpty(inferred.Currency, model.DefaultCurrency),
		VoucherType:         nonEmpty(inferred.VoucherType, model.DefaultVoucherType),
		Recurring:           false,
		ReimbursementStatus: model.ReimbursementPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if !record.Amount.IsPositive() {
		return Registration{Record: record, Err: fmt.Errorf("refusing to save non-positive amount %s", record.Amount)}
	}

	if err := r.store.SaveExpense(ctx, &record); err != nil {
		common.LogError(ctx, r.logger, err, "failed to save expense", common.Fields{
			"owner_id":   ownerID,
			"expense_id": record.ID,
		})
		return Registration{Record: record, Err: fmt.Errorf("save expense: %w", err)}
	}

	r.logger.Info("expense registered",
		"owner_id", ownerID,
		"expense_id", record.ID,
		"amount", record.Amount.StringFixed(2),
		"category", record.Category,
		"source", extracted.Source)

	return Registration{Record: record, Saved: true}
}

// ResolveDate turns an extracted date into a timestamp. A bare YYYY-MM-DD
// keeps now's time of day so same-day entries sort by entry order; a full
// date-time passes through, zone-less ones in now's location; anything else
// becomes now.
func ResolveDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}

	if len(raw) == len(time.DateOnly) {
		if day, err := time.ParseInLocation(time.DateOnly, raw, now.Location()); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), now.Location())
		}
		return now
	}

	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	for _, layout := range localDateTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return ts
		}
	}
	return now
}

// localDateTimeLayouts are full date-times without an offset, read in the
// configured location.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04",
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
