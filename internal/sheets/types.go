package sheets

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// DateRange is the period a report covers. Zero values are open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ExpenseRow is one line of the expense detail table.
type ExpenseRow struct {
	Date          time.Time
	Amount        decimal.Decimal
	Description   string
	Category      string
	Subcategory   string
	PaymentMethod string
	Currency      string
	VoucherType   string
}

// CategorySummaryRow is one line of the per-category breakdown.
type CategorySummaryRow struct {
	Category string
	Amount   decimal.Decimal
	Count    int
}

// Report is everything written for one user.
type Report struct {
	Period     DateRange
	Total      decimal.Decimal
	Owner      string
	Expenses   []ExpenseRow
	Categories []CategorySummaryRow
}

// BuildReport turns stored records into report rows, resolving taxonomy IDs
// to display names. Expenses are ordered newest first; categories by spend.
func BuildReport(owner string, period DateRange, records []model.ExpenseRecord, tax model.Taxonomy) Report {
	summary := model.Summarize(records)

	report := Report{
		Owner:    owner,
		Period:   period,
		Total:    summary.Total,
		Expenses: make([]ExpenseRow, 0, len(records)),
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
		report.Expenses = append(report.Expenses, ExpenseRow{
			Date:          r.Date,
			Amount:        r.Amount,
			Description:   r.Description,
			Category:      tax.CategoryName(r.Category),
			Subcategory:   subcategoryName(tax, r),
			PaymentMethod: tax.PaymentMethodName(r.PaymentMethod),
			Currency:      r.Currency,
			VoucherType:   r.VoucherType,
		})
	}
	sort.SliceStable(report.Expenses, func(i, j int) bool {
		return report.Expenses[i].Date.After(report.Expenses[j].Date)
	})

	for id, amount := range summary.ByCategory {
		report.Categories = append(report.Categories, CategorySummaryRow{
			Category: tax.CategoryName(id),
			Amount:   amount,
			Count:    counts[id],
		})
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		if c := report.Categories[i].Amount.Cmp(report.Categories[j].Amount); c != 0 {
			return c > 0
		}
		return report.Categories[i].Category < report.Categories[j].Category
	})

	return report
}

func subcategoryName(tax model.Taxonomy, r model.ExpenseRecord) string {
	if r.Subcategory == "" {
		return ""
	}
	return tax.SubcategoryName(r.Category, r.Subcategory)
}

