package twilio

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrMissingSender is returned for callbacks without a From field.
var ErrMissingSender = errors.New("webhook has no sender")

// InboundMessage is the part of a Twilio messaging callback the pipeline
// uses. Only the first attachment is kept.
type InboundMessage struct {
	From          string
	Body          string
	ProfileName   string
	MessageSID    string
	MediaURL      string
	MediaMimeType string
	NumMedia      int
}

// ParseInbound decodes a form-encoded callback.
func ParseInbound(form url.Values) (InboundMessage, error) {
	msg := InboundMessage{
		From:        strings.TrimSpace(form.Get("From")),
		Body:        form.Get("Body"),
		ProfileName: strings.TrimSpace(form.Get("ProfileName")),
		MessageSID:  strings.TrimSpace(firstNonEmpty(form.Get("MessageSid"), form.Get("SmsMessageSid"))),
	}
	if msg.From == "" {
		return InboundMessage{}, ErrMissingSender
	}

	if n, err := strconv.Atoi(strings.TrimSpace(form.Get("NumMedia"))); err == nil && n > 0 {
		msg.NumMedia = n
	}
	if msg.NumMedia > 0 || form.Get("MediaUrl0") != "" {
		msg.MediaURL = strings.TrimSpace(form.Get("MediaUrl0"))
		msg.MediaMimeType = strings.TrimSpace(form.Get("MediaContentType0"))
	}
	return msg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
