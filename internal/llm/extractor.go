package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// Extraction errors. They always arrive wrapped in a common.RejectionError.
var (
	ErrNoExpense          = errors.New("no expense identified")
	ErrIncompleteResponse = errors.New("incomplete extraction response")
	ErrUnsupportedImage   = errors.New("unsupported image type")
)

const defaultReceiptDescription = "Gasto detectado"

var supportedImageTypes = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
	"image/gif":  "image/gif",
	"image/webp": "image/webp",
}

// NormalizeImageType canonicalizes a Content-Type header and reports whether
// the vision model accepts it.
func NormalizeImageType(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	canonical, ok := supportedImageTypes[mediaType]
	return canonical, ok
}

// Extractor turns chat text and receipt images into ExtractedExpense values.
type Extractor struct {
	client Client
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewExtractor creates an Extractor. Default dates are computed in loc.
func NewExtractor(client Client, logger *slog.Logger, loc *time.Location) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{client: client, logger: logger, loc: loc, now: time.Now}
}

type textReply struct {
	Monto       json.RawMessage `json:"monto"`
	Categoria   string          `json:"categoria"`
	Descripcion string          `json:"descripcion"`
	Fecha       string          `json:"fecha"`
	Error       string          `json:"error"`
}

type receiptReply struct {
	Monto        json.RawMessage `json:"monto"`
	Comercio     string          `json:"comercio"`
	Descripcion  string          `json:"descripcion"`
	Fecha        string          `json:"fecha"`
	MetodoPago   string          `json:"metodoPago"`
	Moneda       string          `json:"moneda"`
	Categoria    string          `json:"categoria"`
	Subcategoria string          `json:"subcategoria"`
	Error        string          `json:"error"`
}

// ExtractExpense asks the model to read an expense out of free text. Provider
// failures are returned as-is; replies that do not describe a complete
// expense become an unparseable_text rejection.
func (e *Extractor) ExtractExpense(ctx context.Context, text string) (model.ExtractedExpense, error) {
	today := e.today()

	raw, err := e.client.Complete(ctx, textPrompt(text, today))
	if err != nil {
		return model.ExtractedExpense{}, fmt.Errorf("text extraction request: %w", err)
	}
	e.logger.Debug("text extraction response", "response", raw)

	var reply textReply
	if err := json.Unmarshal([]byte(extractJSONPayload(raw)), &reply); err != nil {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnparseableText,
			fmt.Errorf("failed to parse JSON response: %w", err))
	}
	if reply.Error != "" {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnparseableText,
			fmt.Errorf("%w: %s", ErrNoExpense, reply.Error))
	}

	amount, ok := parseAmount(reply.Monto)
	description := strings.TrimSpace(reply.Descripcion)
	if !ok || strings.TrimSpace(reply.Categoria) == "" || description == "" {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnparseableText, ErrIncompleteResponse)
	}

	e.logger.Debug("model suggested category", "category", reply.Categoria)

	return model.ExtractedExpense{
		Amount:      amount,
		Description: description,
		Date:        orDefault(reply.Fecha, today),
		Source:      model.SourceLLMText,
	}, nil
}

// ExtractReceipt asks the vision model to read a receipt or payment
// screenshot. Image types the model cannot take become an unsupported_media
// rejection before any request is made.
func (e *Extractor) ExtractReceipt(ctx context.Context, image []byte, mimeType string) (model.ExtractedExpense, error) {
	canonical, ok := NormalizeImageType(mimeType)
	if !ok {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnsupportedMedia,
			fmt.Errorf("%w: %q", ErrUnsupportedImage, mimeType))
	}

	raw, err := e.client.CompleteWithImage(ctx, image, canonical, receiptPrompt)
	if err != nil {
		return model.ExtractedExpense{}, fmt.Errorf("receipt extraction request: %w", err)
	}
	e.logger.Debug("receipt extraction response", "response", raw)

	var reply receiptReply
	if err := json.Unmarshal([]byte(extractJSONPayload(raw)), &reply); err != nil {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnreadableReceipt,
			fmt.Errorf("failed to parse JSON response: %w", err))
	}
	if reply.Error != "" {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnreadableReceipt,
			fmt.Errorf("%w: %s", ErrNoExpense, reply.Error))
	}

	amount, ok := parseAmount(reply.Monto)
	if !ok {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectIncompleteExtraction,
			fmt.Errorf("%w: missing monto", ErrIncompleteResponse))
	}

	merchant := strings.TrimSpace(reply.Comercio)
	return model.ExtractedExpense{
		Amount:            amount,
		Description:       orDefault(reply.Descripcion, orDefault(merchant, defaultReceiptDescription)),
		Date:              orDefault(reply.Fecha, e.today()),
		Merchant:          merchant,
		PaymentMethodHint: orDefault(message.Lower(strings.TrimSpace(reply.MetodoPago)), model.DefaultPaymentMethod),
		CurrencyHint:      orDefault(reply.Moneda, model.DefaultCurrency),
		CategoryHint:      orDefault(reply.Categoria, model.DefaultCategoryID),
		SubcategoryHint:   strings.TrimSpace(reply.Subcategoria),
		Source:            model.SourceVision,
	}, nil
}

func (e *Extractor) today() string {
	return e.now().In(e.loc).Format(time.DateOnly)
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
