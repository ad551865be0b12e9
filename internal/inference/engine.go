// Package inference maps free-form expense text onto a user's taxonomy. It is
// deterministic and never calls out to an LLM.
package inference

import (
	"strings"

	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

type cue struct {
	value    string
	keywords []string
}

// Universal payment cues, checked before the user's own methods.
var paymentCues = []cue{
	{"yape", []string{"yape"}},
	{"plin", []string{"plin"}},
	{"efectivo", []string{"efectivo"}},
	{"transferencia", []string{"transferencia"}},
	{"tarjeta", []string{"tarjeta"}},
}

var currencyCues = []cue{
	{"USD", []string{"dólar", "dolar", "usd", "$"}},
	{"PEN", []string{"soles", "sol", "pen"}},
}

var voucherCues = []cue{
	{"factura", []string{"factura"}},
	{"recibo", []string{"recibo"}},
	{"nota_venta", []string{"nota de venta", "nota venta"}},
}

// InferCategory returns the ID of the first category whose name, subcategory
// names or subcategory keywords appear in text. Without a match it falls back
// to the first category, or "otros" for an empty taxonomy.
func InferCategory(tax model.Taxonomy, text string) string {
	folded := message.Lower(text)

	for _, cat := range tax.Categories {
		if containsTerm(folded, cat.Name) || matchSubcategory(cat, folded) != "" {
			return cat.ID
		}
	}

	if len(tax.Categories) > 0 {
		return tax.Categories[0].ID
	}
	return model.DefaultCategoryID
}

// InferSubcategory scans one category's subcategories. Unknown categories and
// categories without subcategories yield "".
func InferSubcategory(tax model.Taxonomy, categoryID, text string) string {
	cat, ok := tax.Category(categoryID)
	if !ok || len(cat.Subcategories) == 0 {
		return ""
	}

	if id := matchSubcategory(cat, message.Lower(text)); id != "" {
		return id
	}
	return cat.Subcategories[0].ID
}

// InferPaymentMethod checks universal cues, then the user's payment methods by
// name. The default is "efectivo".
func InferPaymentMethod(tax model.Taxonomy, text string) string {
	folded := message.Lower(text)

	if v := firstCue(paymentCues, folded); v != "" {
		return v
	}
	for _, pm := range tax.PaymentMethods {
		if containsTerm(folded, pm.Name) {
			return pm.ID
		}
	}
	return model.DefaultPaymentMethod
}

// InferCurrency returns "USD" for dollar cues and "PEN" otherwise.
func InferCurrency(text string) string {
	if v := firstCue(currencyCues, message.Lower(text)); v != "" {
		return v
	}
	return model.DefaultCurrency
}

// InferVoucherType returns factura, recibo or nota_venta on a cue, else boleta.
func InferVoucherType(text string) string {
	if v := firstCue(voucherCues, message.Lower(text)); v != "" {
		return v
	}
	return model.DefaultVoucherType
}

// Infer runs every inference over an extracted expense. Extractor hints take
// the place of the description where present.
func Infer(tax model.Taxonomy, e model.ExtractedExpense) model.Inferred {
	categoryID := InferCategory(tax, orElse(e.CategoryHint, e.Description))

	currency := strings.ToUpper(strings.TrimSpace(e.CurrencyHint))
	if currency == "" {
		currency = InferCurrency(e.Description)
	}

	return model.Inferred{
		CategoryID:    categoryID,
		SubcategoryID: InferSubcategory(tax, categoryID, orElse(e.SubcategoryHint, e.Description)),
		PaymentMethod: InferPaymentMethod(tax, orElse(e.PaymentMethodHint, e.Description)),
		Currency:      currency,
		VoucherType:   InferVoucherType(orElse(e.VoucherTypeHint, e.Description)),
	}
}

func matchSubcategory(cat model.Category, folded string) string {
	for _, sub := range cat.Subcategories {
		if containsTerm(folded, sub.Name) {
			return sub.ID
		}
		for _, kw := range sub.Keywords {
			if containsTerm(folded, kw) {
				return sub.ID
			}
		}
	}
	return ""
}

func firstCue(cues []cue, folded string) string {
	for _, c := range cues {
		for _, kw := range c.keywords {
			if strings.Contains(folded, kw) {
				return c.value
			}
		}
	}
	return ""
}

// containsTerm reports whether folded text contains term. Blank terms never
// match; otherwise every text would hit the first category.
func containsTerm(folded, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	return strings.Contains(folded, message.Lower(term))
}

func orElse(hint, fallback string) string {
	if strings.TrimSpace(hint) != "" {
		return hint
	}
	return fallback
}
