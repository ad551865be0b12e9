package twilio

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - Twilio signs webhooks with HMAC-SHA1
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "X-Twilio-Signature"

// ErrInvalidSignature is returned when a webhook signature does not match.
var ErrInvalidSignature = errors.New("invalid twilio signature")

// ComputeSignature signs the full request URL followed by every POST
// parameter name and value, sorted by name.
func ComputeSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL))
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			mac.Write([]byte(k))
			mac.Write([]byte(v))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks signature against the expected value.
func ValidateSignature(authToken, fullURL string, params url.Values, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	expected := ComputeSignature(authToken, fullURL, params)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
