package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

const (
	replyUnregistered = "❌ No estás registrado en la plataforma.\n\n" +
		"Por favor vincula tu número de WhatsApp desde tu perfil en la aplicación."

	replyUnparseable = "❌ No pude entender el formato del gasto.\n\n" +
		"💡 Formatos correctos:\n" +
		"• \"50 almuerzo\"\n" +
		"• \"25.50 taxi con yape\"\n" +
		"• \"Gasté 15 soles en bodega\"\n\n" +
		"Escribe \"ayuda\" para más información."

	replyUnsupportedMedia = "❌ Formato de imagen no soportado. " +
		"Por favor envía una imagen en formato JPG, PNG o WebP."

	replyUnreadableReceipt = "❌ No pude extraer información de la imagen. " +
		"Asegúrate de enviar un comprobante o captura de pago clara."

	replyEmptyMessage = "❌ No recibí ningún contenido.\n\n" +
		"Envía un gasto como \"50 almuerzo\" o una foto de tu comprobante."

	replyFinalFailure = "❌ Error al procesar tu mensaje después de varios intentos. " +
		"Por favor intenta de nuevo más tarde."

	replyNoExpenses = "📊 No tienes gastos registrados todavía.\n\n" +
		"Envía un mensaje como:\n" +
		"• \"50 almuerzo\"\n" +
		"• \"25 taxi\"\n" +
		"O envía una foto de tu comprobante."

	replyHelp = "🤖 *Asistente de Gastos Inteligente*\n\n" +
		"📝 *Registrar gasto:*\n" +
		"Envía el monto y descripción:\n" +
		"• \"50 almuerzo\"\n" +
		"• \"25.50 taxi con yape\"\n" +
		"• \"Gasté 100 en supermercado\"\n\n" +
		"📷 *Registrar con foto:*\n" +
		"Envía una foto de:\n" +
		"• Comprobante de pago\n" +
		"• Captura de Yape/Plin\n" +
		"• Boleta o factura\n\n" +
		"📊 *Ver resumen:*\n" +
		"Escribe \"resumen\" o \"resumen 2025-11\" para un mes\n\n" +
		"¡Empieza a registrar tus gastos ahora! 💸"

	welcomeTemplate = "👋 ¡Hola %s!\n\n" +
		"Bienvenido a tu Asistente de Gastos Inteligente.\n\n" +
		"Puedes registrar gastos de dos formas:\n\n" +
		"📝 *Escribe el gasto:*\n" +
		"\"50 almuerzo\"\n\n" +
		"📷 *Envía una foto:*\n" +
		"De tu comprobante o captura de pago\n\n" +
		"Escribe \"ayuda\" para ver todos los comandos."
)

// rejectionReply picks the explanation sent for a business rejection.
func rejectionReply(kind common.RejectionKind) string {
	switch kind {
	case common.RejectUnregistered:
		return replyUnregistered
	case common.RejectUnsupportedMedia:
		return replyUnsupportedMedia
	case common.RejectUnreadableReceipt, common.RejectIncompleteExtraction:
		return replyUnreadableReceipt
	case common.RejectEmptyMessage:
		return replyEmptyMessage
	default:
		return replyUnparseable
	}
}

func welcomeReply(user *model.User) string {
	return fmt.Sprintf(welcomeTemplate, user.Name())
}

// currencySymbol renders the prefix shown before amounts.
func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "PEN", "":
		return "S/"
	case "USD":
		return "$"
	default:
		return strings.ToUpper(code)
	}
}

func formatAmount(currency string, amount decimal.Decimal) string {
	return currencySymbol(currency) + " " + amount.StringFixed(2)
}

// confirmationReply describes a registered expense. Subcategory and merchant
// lines appear only when set.
func confirmationReply(record model.ExpenseRecord, extracted model.ExtractedExpense, tax model.Taxonomy) string {
	var b strings.Builder
	if extracted.Source == model.SourceVision {
		b.WriteString("✅ *Gasto registrado por imagen!*\n\n")
	} else {
		b.WriteString("✅ *Gasto registrado exitosamente!*\n\n")
	}

	fmt.Fprintf(&b, "💰 Monto: %s\n", formatAmount(record.Currency, record.Amount))
	fmt.Fprintf(&b, "📝 Descripción: %s\n", record.Description)
	fmt.Fprintf(&b, "🏷️ Categoría: %s\n", tax.CategoryName(record.Category))
	fmt.Fprintf(&b, "💳 Método: %s", tax.PaymentMethodName(record.PaymentMethod))

	if record.Subcategory != "" {
		fmt.Fprintf(&b, "\n📂 Subcategoría: %s", tax.SubcategoryName(record.Category, record.Subcategory))
	}
	if extracted.Merchant != "" {
		fmt.Fprintf(&b, "\n🏪 Comercio: %s", extracted.Merchant)
	}
	if extracted.Source != model.SourceVision {
		b.WriteString("\n\nEscribe \"resumen\" para ver tus gastos.")
	}
	return b.String()
}

// summaryReply renders totals with categories ordered by spend. Each currency
// gets its own total and breakdown.
func summaryReply(summary model.ExpenseSummary, tax model.Taxonomy, month string) string {
	if summary.Count == 0 {
		if month != "" {
			return fmt.Sprintf("📊 No tienes gastos registrados en %s.", month)
		}
		return replyNoExpenses
	}

	var b strings.Builder
	b.WriteString("📊 *Resumen de Gastos*")
	if month != "" {
		fmt.Fprintf(&b, " (%s)", month)
	}
	b.WriteString("\n\n")

	currencies := summary.Currencies()
	if len(currencies) == 1 {
		fmt.Fprintf(&b, "💰 Total: %s\n", formatAmount(currencies[0], summary.ByCurrency[currencies[0]].Total))
	} else {
		b.WriteString("💰 Total:")
		for _, code := range currencies {
			fmt.Fprintf(&b, "\n  • %s", formatAmount(code, summary.ByCurrency[code].Total))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "📝 Cantidad: %d gastos\n\n", summary.Count)
	b.WriteString("*Por categoría:*")

	for _, code := range currencies {
		for _, l := range categoryLines(summary.ByCurrency[code].ByCategory, tax) {
			fmt.Fprintf(&b, "\n  • %s: %s", l.name, formatAmount(code, l.amount))
		}
	}
	return b.String()
}

type categoryLine struct {
	amount decimal.Decimal
	name   string
}

func categoryLines(byCategory map[string]decimal.Decimal, tax model.Taxonomy) []categoryLine {
	lines := make([]categoryLine, 0, len(byCategory))
	for id, amount := range byCategory {
		lines = append(lines, categoryLine{name: tax.CategoryName(id), amount: amount})
	}
	sort.Slice(lines, func(i, j int) bool {
		if c := lines[i].amount.Cmp(lines[j].amount); c != 0 {
			return c > 0
		}
		return lines[i].name < lines[j].name
	})
	return lines
}
