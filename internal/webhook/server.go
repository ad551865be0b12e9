// Package webhook receives Twilio messaging callbacks over HTTP, turning each
// into a pending queue item, and serves a health endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
	"github.com/Veraticus/gastos-must-flow/internal/twilio"
)

// Route paths.
const (
	WhatsAppPath = "/webhooks/whatsapp"
	HealthPath   = "/healthz"

	emptyTwiML  = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	serviceName = "gastos"
	maxFormSize = 1 << 20
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Features are the capabilities reported by the health endpoint.
type Features struct {
	TextParsing       bool `json:"textParsing"`
	ImageParsing      bool `json:"imageParsing"`
	CategoryInference bool `json:"categoryInference"`
	UserValidation    bool `json:"userValidation"`
}

// Config wires the handler. AuthToken and PublicURL are only needed when
// ValidateSignature is set.
type Config struct {
	Queue             service.QueueStore
	DB                Pinger
	Logger            *slog.Logger
	AuthToken         string
	PublicURL         string
	Features          Features
	ValidateSignature bool
}

// Handler serves the webhook and health routes.
type Handler struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
	now    func() time.Time
}

// NewHandler builds the routes.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("%w: queue store", common.ErrMissingConfig)
	}
	if cfg.ValidateSignature && cfg.AuthToken == "" {
		return nil, fmt.Errorf("%w: signature validation needs the twilio auth token", common.ErrMissingConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{cfg: cfg, logger: logger, mux: http.NewServeMux(), now: time.Now}
	h.mux.HandleFunc("POST "+WhatsAppPath, h.handleWhatsApp)
	h.mux.HandleFunc("GET "+HealthPath, h.handleHealth)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if h.cfg.ValidateSignature {
		err := twilio.ValidateSignature(h.cfg.AuthToken, h.requestURL(r), r.PostForm, r.Header.Get(twilio.SignatureHeader))
		if err != nil {
			h.logger.Warn("rejected webhook with bad signature", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	inbound, err := twilio.ParseInbound(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item := &model.QueueItem{
		ChannelIdentity: message.NormalizeIdentity(inbound.From),
		RawMessage:      inbound.Body,
		ProfileName:     inbound.ProfileName,
		MessageSID:      inbound.MessageSID,
		Status:          model.QueuePending,
	}
	if inbound.MediaURL != "" {
		item.Media = &model.MediaReference{URL: inbound.MediaURL, MimeType: inbound.MediaMimeType}
	}

	err = h.cfg.Queue.EnqueueMessage(r.Context(), item)
	switch {
	case errors.Is(err, common.ErrDuplicateEntry):
		h.logger.Info("ignoring redelivered webhook", "message_sid", inbound.MessageSID)
	case err != nil:
		h.logger.Error("failed to enqueue message", "message_sid", inbound.MessageSID, "error", err)
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
		return
	default:
		h.logger.Info("message enqueued",
			"item_id", item.ID,
			"message_sid", inbound.MessageSID,
			"has_media", item.HasMedia())
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// requestURL rebuilds the URL Twilio signed. Behind a proxy PublicURL must
// be the externally visible origin.
func (h *Handler) requestURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimRight(h.cfg.PublicURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

type healthResponse struct {
	Features  Features `json:"features"`
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Service   string   `json:"service"`
	Database  string   `json:"database,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   serviceName,
		Features:  h.cfg.Features,
	}
	code := http.StatusOK

	if h.cfg.DB != nil {
		resp.Database = "ok"
		if err := h.cfg.DB.Ping(r.Context()); err != nil {
			h.logger.Error("health check database ping failed", "error", err)
			resp.Status = "degraded"
			resp.Database = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		logger.Info("http server stopped")
		return nil
	}
}
