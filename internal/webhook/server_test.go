package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
	"github.com/Veraticus/gastos-must-flow/internal/twilio"
)

type recordingQueue struct {
	err   error
	items []model.QueueItem
	seen  map[string]bool
	mu    sync.Mutex
}

func (q *recordingQueue) EnqueueMessage(_ context.Context, item *model.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	if q.seen == nil {
		q.seen = make(map[string]bool)
	}
	if item.MessageSID != "" && q.seen[item.MessageSID] {
		return common.ErrDuplicateEntry
	}
	q.seen[item.MessageSID] = true
	item.ID = "q" + item.MessageSID
	q.items = append(q.items, *item)
	return nil
}

func (q *recordingQueue) GetQueueItem(context.Context, string) (*model.QueueItem, error) {
	return nil, common.ErrNotFound
}

func (q *recordingQueue) ClaimQueueItem(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (q *recordingQueue) UpdateQueueItem(context.Context, *model.QueueItem) error { return nil }

func (q *recordingQueue) ListQueueItems(context.Context, service.QueueFilter) ([]model.QueueItem, error) {
	return nil, nil
}

func (q *recordingQueue) RecoverStaleQueueItems(context.Context, time.Time) (int, error) {
	return 0, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func postForm(t *testing.T, h http.Handler, form url.Values, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://gastos.example.com"+WhatsAppPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(twilio.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWhatsAppWebhook_Enqueues(t *testing.T) {
	queue := &recordingQueue{}
	h, err := NewHandler(Config{Queue: queue})
	require.NoError(t, err)

	form := url.Values{
		"From":              {"whatsapp:+51 999 888 777"},
		"Body":              {"taxi"},
		"ProfileName":       {"Ana"},
		"MessageSid":        {"SM1"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME1"},
		"MediaContentType0": {"image/jpeg"},
	}
	rec := postForm(t, h, form, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response></Response>")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/xml")

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	assert.Equal(t, "+51999888777", item.ChannelIdentity)
	assert.Equal(t, "taxi", item.RawMessage)
	assert.Equal(t, "Ana", item.ProfileName)
	assert.Equal(t, model.QueuePending, item.Status)
	require.NotNil(t, item.Media)
	assert.Equal(t, "image/jpeg", item.Media.MimeType)

	// Redelivery is acknowledged without a second item.
	rec = postForm(t, h, form, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, queue.items, 1)
}

func TestWhatsAppWebhook_Errors(t *testing.T) {
	queue := &recordingQueue{}
	h, err := NewHandler(Config{Queue: queue})
	require.NoError(t, err)

	rec := postForm(t, h, url.Values{"Body": {"hola"}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	queue.err = errors.New("database is locked")
	rec = postForm(t, h, url.Values{"From": {"whatsapp:+1"}, "Body": {"hola"}}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	req := httptest.NewRequest(http.MethodGet, WhatsAppPath, http.NoBody)
	getRec := httptest.NewRecorder()
	h.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, getRec.Code)
}

func TestWhatsAppWebhook_Signature(t *testing.T) {
	queue := &recordingQueue{}
	h, err := NewHandler(Config{
		Queue:             queue,
		AuthToken:         "secret",
		PublicURL:         "https://gastos.example.com/",
		ValidateSignature: true,
	})
	require.NoError(t, err)

	form := url.Values{"From": {"whatsapp:+1"}, "Body": {"50 almuerzo"}, "MessageSid": {"SM9"}}
	good := twilio.ComputeSignature("secret", "https://gastos.example.com"+WhatsAppPath, form)

	rec := postForm(t, h, form, "bogus")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, queue.items)

	rec = postForm(t, h, form, good)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, queue.items, 1)

	_, err = NewHandler(Config{Queue: queue, ValidateSignature: true})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		db         Pinger
		name       string
		wantStatus string
		wantCode   int
	}{
		{name: "no database configured", wantStatus: "ok", wantCode: http.StatusOK},
		{name: "database up", db: pinger{}, wantStatus: "ok", wantCode: http.StatusOK},
		{name: "database down", db: pinger{err: errors.New("closed")}, wantStatus: "degraded", wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(Config{
				Queue:    &recordingQueue{},
				DB:       tt.db,
				Features: Features{TextParsing: true, ImageParsing: true, CategoryInference: true, UserValidation: true},
			})
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, http.NoBody))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "gastos", body["service"])
			features, ok := body["features"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, features["imageParsing"])
		})
	}
}
