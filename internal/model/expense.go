// Package model defines the core domain models used throughout the application.
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied when neither the message nor the taxonomy says otherwise.
const (
	DefaultCurrency      = "PEN"
	DefaultPaymentMethod = "efectivo"
	DefaultVoucherType   = "boleta"
	ReimbursementPending = "pending"
)

// ExtractionSource records which parser produced an extracted expense.
type ExtractionSource string

// Extraction sources.
const (
	SourcePattern ExtractionSource = "pattern"
	SourceLLMText ExtractionSource = "llm_text"
	SourceVision  ExtractionSource = "vision"
)

// ExtractedExpense is the transient output of a parsing or extraction step.
// It is never persisted directly; inference always runs first.
type ExtractedExpense struct {
	Amount            decimal.Decimal
	Description       string
	Date              string // YYYY-MM-DD or RFC 3339; empty means today
	Merchant          string
	PaymentMethodHint string
	CurrencyHint      string
	VoucherTypeHint   string
	CategoryHint      string
	SubcategoryHint   string
	Source            ExtractionSource
}

// Inferred holds the taxonomy fields chosen by the inference engine.
type Inferred struct {
	CategoryID    string
	SubcategoryID string // empty when the category has no subcategories
	PaymentMethod string
	Currency      string
	VoucherType   string
}

// ExpenseRecord is a persisted expense. It is written once and never
// updated by the ingestion pipeline.
type ExpenseRecord struct {
	Date                time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Amount              decimal.Decimal
	ID                  string
	OwnerID             string
	Category            string
	Subcategory         string
	Description         string
	PaymentMethod       string
	Currency            string
	VoucherType         string
	ReimbursementStatus string
	Recurring           bool
}

// ExpenseSummary aggregates a set of expense records. Total and ByCategory
// mix currencies; ByCurrency keeps them apart.
type ExpenseSummary struct {
	ByCategory map[string]decimal.Decimal
	ByCurrency map[string]CurrencySummary
	Total      decimal.Decimal
	Count      int
}

// CurrencySummary totals the records of one currency.
type CurrencySummary struct {
	ByCategory map[string]decimal.Decimal
	Total      decimal.Decimal
}

// Summarize totals records overall, per category and per currency. An empty
// currency counts as DefaultCurrency.
func Summarize(records []ExpenseRecord) ExpenseSummary {
	summary := ExpenseSummary{
		ByCategory: make(map[string]decimal.Decimal),
		ByCurrency: make(map[string]CurrencySummary),
		Total:      decimal.Zero,
	}
	for _, r := range records {
		summary.Total = summary.Total.Add(r.Amount)
		summary.ByCategory[r.Category] = summary.ByCategory[r.Category].Add(r.Amount)
		summary.Count++

		code := strings.ToUpper(strings.TrimSpace(r.Currency))
		if code == "" {
			code = DefaultCurrency
		}
		cs, ok := summary.ByCurrency[code]
		if !ok {
			cs = CurrencySummary{ByCategory: make(map[string]decimal.Decimal)}
		}
		cs.Total = cs.Total.Add(r.Amount)
		cs.ByCategory[r.Category] = cs.ByCategory[r.Category].Add(r.Amount)
		summary.ByCurrency[code] = cs
	}
	return summary
}

// Currencies returns the currency codes present in the summary,
// DefaultCurrency first and the rest alphabetically.
func (s ExpenseSummary) Currencies() []string {
	codes := make([]string, 0, len(s.ByCurrency))
	for code := range s.ByCurrency {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if (codes[i] == DefaultCurrency) != (codes[j] == DefaultCurrency) {
			return codes[i] == DefaultCurrency
		}
		return codes[i] < codes[j]
	})
	return codes
}
