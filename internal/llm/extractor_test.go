package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// stubClient returns a canned reply and records what it was sent.
type stubClient struct {
	err        error
	reply      string
	lastPrompt string
	lastMime   string
	lastImage  []byte
	calls      int
}

func (s *stubClient) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	return s.reply, s.err
}

func (s *stubClient) CompleteWithImage(_ context.Context, image []byte, mimeType, prompt string) (string, error) {
	s.calls++
	s.lastImage = image
	s.lastMime = mimeType
	s.lastPrompt = prompt
	return s.reply, s.err
}

func newTestExtractor(client Client) *Extractor {
	e := NewExtractor(client, nil, time.UTC)
	e.now = func() time.Time { return time.Date(2025, 11, 25, 15, 4, 5, 0, time.UTC) }
	return e
}

func TestExtractExpense(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantErr  bool
		amount   string
		desc     string
		date     string
		rejected bool
	}{
		{
			name:   "plain json",
			reply:  `{"monto": 80, "categoria": "salud", "descripcion": "medicina", "fecha": "2025-11-20"}`,
			amount: "80", desc: "medicina", date: "2025-11-20",
		},
		{
			name:   "fenced json with string amount",
			reply:  "```json\n{\"monto\": \"25.50\", \"categoria\": \"comida\", \"descripcion\": \"almuerzo\"}\n```",
			amount: "25.5", desc: "almuerzo", date: "2025-11-25",
		},
		{
			name:   "bare fence",
			reply:  "Claro:\n```\n{\"monto\": 12, \"categoria\": \"transporte\", \"descripcion\": \"taxi\", \"fecha\": \"\"}\n```",
			amount: "12", desc: "taxi", date: "2025-11-25",
		},
		{name: "error field", reply: `{"error": "No se pudo identificar"}`, wantErr: true, rejected: true},
		{name: "zero amount", reply: `{"monto": 0, "categoria": "comida", "descripcion": "x"}`, wantErr: true, rejected: true},
		{name: "non numeric amount", reply: `{"monto": "veinte", "categoria": "comida", "descripcion": "x"}`, wantErr: true, rejected: true},
		{name: "missing category", reply: `{"monto": 10, "descripcion": "x"}`, wantErr: true, rejected: true},
		{name: "missing description", reply: `{"monto": 10, "categoria": "comida"}`, wantErr: true, rejected: true},
		{name: "not json", reply: "no entiendo", wantErr: true, rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{reply: tt.reply}
			got, err := newTestExtractor(client).ExtractExpense(context.Background(), "compré medicina por 80")

			assert.Contains(t, client.lastPrompt, "compré medicina por 80")
			assert.Contains(t, client.lastPrompt, "2025-11-25")

			if tt.wantErr {
				require.Error(t, err)
				kind, ok := common.RejectionKindOf(err)
				assert.Equal(t, tt.rejected, ok)
				assert.Equal(t, common.RejectUnparseableText, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, got.Amount.String())
			assert.Equal(t, tt.desc, got.Description)
			assert.Equal(t, tt.date, got.Date)
			assert.Empty(t, got.CategoryHint)
			assert.Equal(t, model.SourceLLMText, got.Source)
		})
	}
}

func TestExtractExpense_TransportFailureIsNotARejection(t *testing.T) {
	client := &stubClient{err: errors.New("connection reset")}
	_, err := newTestExtractor(client).ExtractExpense(context.Background(), "algo")
	require.Error(t, err)
	assert.False(t, common.IsRejection(err))
}

func TestExtractReceipt(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		client := &stubClient{reply: `{"monto": 45.9, "comercio": "Tambo", "metodoPago": "YAPE", "subcategoria": null}`}
		got, err := newTestExtractor(client).ExtractReceipt(context.Background(), []byte("img"), "image/jpeg; charset=binary")
		require.NoError(t, err)

		assert.Equal(t, "image/jpeg", client.lastMime)
		assert.Equal(t, []byte("img"), client.lastImage)
		assert.Equal(t, "45.9", got.Amount.String())
		assert.Equal(t, "Tambo", got.Description)
		assert.Equal(t, "Tambo", got.Merchant)
		assert.Equal(t, "2025-11-25", got.Date)
		assert.Equal(t, "yape", got.PaymentMethodHint)
		assert.Equal(t, "PEN", got.CurrencyHint)
		assert.Equal(t, "otros", got.CategoryHint)
		assert.Empty(t, got.SubcategoryHint)
		assert.Equal(t, model.SourceVision, got.Source)
	})

	t.Run("full reply", func(t *testing.T) {
		client := &stubClient{reply: "```json\n" + `{"monto": "120", "comercio": "", "descripcion": "Consulta", "fecha": "2025-11-01",
			"metodoPago": "", "moneda": "USD", "categoria": "salud", "subcategoria": "medico"}` + "\n```"}
		got, err := newTestExtractor(client).ExtractReceipt(context.Background(), []byte("img"), "image/png")
		require.NoError(t, err)

		assert.Equal(t, "Consulta", got.Description)
		assert.Equal(t, "2025-11-01", got.Date)
		assert.Equal(t, "efectivo", got.PaymentMethodHint)
		assert.Equal(t, "USD", got.CurrencyHint)
		assert.Equal(t, "salud", got.CategoryHint)
		assert.Equal(t, "medico", got.SubcategoryHint)
	})

	t.Run("placeholder description", func(t *testing.T) {
		client := &stubClient{reply: `{"monto": 5}`}
		got, err := newTestExtractor(client).ExtractReceipt(context.Background(), []byte("img"), "image/webp")
		require.NoError(t, err)
		assert.Equal(t, "Gasto detectado", got.Description)
	})

	rejections := []struct {
		name  string
		mime  string
		reply string
		kind  common.RejectionKind
	}{
		{"pdf", "application/pdf", `{"monto": 5}`, common.RejectUnsupportedMedia},
		{"audio", "audio/ogg", `{"monto": 5}`, common.RejectUnsupportedMedia},
		{"error field", "image/png", `{"error": "No es un comprobante"}`, common.RejectUnreadableReceipt},
		{"garbage", "image/png", "lo siento", common.RejectUnreadableReceipt},
		{"missing amount", "image/png", `{"comercio": "Tambo"}`, common.RejectIncompleteExtraction},
		{"zero amount", "image/png", `{"monto": 0}`, common.RejectIncompleteExtraction},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{reply: tt.reply}
			_, err := newTestExtractor(client).ExtractReceipt(context.Background(), []byte("x"), tt.mime)
			kind, ok := common.RejectionKindOf(err)
			require.True(t, ok, "expected rejection, got %v", err)
			assert.Equal(t, tt.kind, kind)
		})
	}

	t.Run("unsupported type never calls the model", func(t *testing.T) {
		client := &stubClient{reply: `{"monto": 5}`}
		_, _ = newTestExtractor(client).ExtractReceipt(context.Background(), []byte("x"), "video/mp4")
		assert.Zero(t, client.calls)
	})
}

func TestNormalizeImageType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"image/jpeg", "image/jpeg", true},
		{"IMAGE/JPG", "image/jpeg", true},
		{"image/png; name=x.png", "image/png", true},
		{"image/gif", "image/gif", true},
		{"image/webp", "image/webp", true},
		{"image/heic", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeImageType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
