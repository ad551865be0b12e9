package message

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// expensePatterns are tried in order; the first usable match wins.
var expensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)^(?:gast[eé]|pagu[eé])\s+(\d+(?:\.\d{1,2})?)\s+(?:soles?\s+)?(?:en\s+)?(.+)$`),
	regexp.MustCompile(`(?is)^(\d+(?:\.\d{1,2})?)\s+(?:soles?\s+)?(?:en\s+)?(.+)$`),
}

// ParseExpense extracts an amount and description from common phrasings like
// "gasté 25 soles en almuerzo" or "50 taxi" without any external call. It
// reports false when no pattern yields a positive amount and a description.
func ParseExpense(text string) (model.ExtractedExpense, bool) {
	text = strings.TrimSpace(text)

	for _, re := range expensePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		amount, err := decimal.NewFromString(m[1])
		if err != nil || !amount.IsPositive() {
			continue
		}
		description := strings.TrimSpace(m[2])
		if description == "" {
			continue
		}

		return model.ExtractedExpense{
			Amount:      amount,
			Description: description,
			Source:      model.SourcePattern,
		}, true
	}

	return model.ExtractedExpense{}, false
}
