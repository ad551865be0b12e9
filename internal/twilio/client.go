// Package twilio talks to the Twilio WhatsApp API: sending replies,
// downloading attachments and decoding signed webhook callbacks.
package twilio

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
)

const (
	defaultBaseURL = "https://api.twilio.com"
	// DefaultWhatsAppNumber is the Twilio sandbox sender.
	DefaultWhatsAppNumber = "whatsapp:+14155238886"
	whatsAppPrefix        = "whatsapp:"

	defaultSendTimeout  = 15 * time.Second
	defaultMediaTimeout = 25 * time.Second
	// DefaultMaxMediaBytes caps attachment downloads.
	DefaultMaxMediaBytes = 10 << 20
)

// Config holds Twilio credentials and endpoints.
type Config struct {
	AccountSID     string
	AuthToken      string
	WhatsAppNumber string
	BaseURL        string
	SendTimeout    time.Duration
	MediaTimeout   time.Duration
	MaxMediaBytes  int64
}

// Validate checks that credentials are present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccountSID) == "" {
		return fmt.Errorf("%w: twilio account SID", common.ErrMissingConfig)
	}
	if strings.TrimSpace(c.AuthToken) == "" {
		return fmt.Errorf("%w: twilio auth token", common.ErrMissingConfig)
	}
	return nil
}

func (c Config) baseURL() string {
	if c.BaseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c Config) sender() string {
	if c.WhatsAppNumber == "" {
		return DefaultWhatsAppNumber
	}
	return WhatsAppAddress(c.WhatsAppNumber)
}

// WhatsAppAddress adds the whatsapp: prefix unless it is already there.
func WhatsAppAddress(identity string) string {
	identity = strings.TrimSpace(identity)
	if strings.HasPrefix(identity, whatsAppPrefix) {
		return identity
	}
	return whatsAppPrefix + identity
}

func newHTTPClient(timeout, fallback time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{Timeout: timeout}
}
