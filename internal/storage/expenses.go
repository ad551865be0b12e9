package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

const expenseColumns = `id, owner_id, amount, category, subcategory, description, date,
	payment_method, currency, voucher_type, recurring, reimbursement_status, created_at, updated_at`

// SaveExpense appends a new expense record. Records are never updated.
func (s *SQLiteStorage) SaveExpense(ctx context.Context, record *model.ExpenseRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExpense(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.OwnerID, record.Amount.String(), record.Category, record.Subcategory,
		record.Description, record.Date.UTC(), record.PaymentMethod, record.Currency,
		record.VoucherType, record.Recurring, record.ReimbursementStatus,
		record.CreatedAt.UTC(), record.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: expense %s", common.ErrDuplicateEntry, record.ID)
		}
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

// ListExpenses returns an owner's expenses, newest first. Start is
// inclusive and End exclusive; zero values leave that side open.
func (s *SQLiteStorage) ListExpenses(ctx context.Context, ownerID string, filter service.ExpenseFilter) ([]model.ExpenseRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}
	if !filter.Start.IsZero() && !filter.End.IsZero() && !filter.Start.Before(filter.End) {
		return nil, fmt.Errorf("%w: %v >= %v", ErrInvalidDateRange, filter.Start, filter.End)
	}

	var (
		where = []string{"owner_id = ?"}
		args  = []any{ownerID}
	)
	if !filter.Start.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		where = append(where, "date < ?")
		args = append(args, filter.End.UTC())
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.ExpenseRecord
	for rows.Next() {
		var (
			rec    model.ExpenseRecord
			amount string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&amount,
			&rec.Category,
			&rec.Subcategory,
			&rec.Description,
			&rec.Date,
			&rec.PaymentMethod,
			&rec.Currency,
			&rec.VoucherType,
			&rec.Recurring,
			&rec.ReimbursementStatus,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}

		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q for expense %s", common.ErrDatabaseCorrupted, amount, rec.ID)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
