package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Veraticus/gastos-must-flow/internal/common"
)

// Gateway sends WhatsApp messages through the Twilio Messages API.
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
}

// NewGateway creates a Gateway. Credentials are required.
func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:        cfg,
		logger:     logger,
		httpClient: newHTTPClient(cfg.SendTimeout, defaultSendTimeout),
	}, nil
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Send delivers text to identity. A nil error means Twilio accepted it.
func (g *Gateway) Send(ctx context.Context, identity, text string) error {
	form := url.Values{}
	form.Set("To", WhatsAppAddress(identity))
	form.Set("From", g.cfg.sender())
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.cfg.baseURL(), url.PathEscape(g.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSendFailed, err)
	}
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSendFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", common.ErrSendFailed, err)
	}

	var decoded messageResponse
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: code %d: %s", common.ErrSendFailed, resp.StatusCode, decoded.Code, decoded.Message)
	}

	g.logger.Info("whatsapp message sent",
		"to", identity,
		"sid", decoded.SID,
		"status", decoded.Status)
	return nil
}
