// Package message turns raw inbound chat events into classified inputs for the
// expense pipeline: identity normalization, text sanitizing, the command
// grammar and the deterministic amount parser.
package message

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// MaxTextLength is the rune limit applied by Sanitize.
const MaxTextLength = 500

var (
	channelPrefix = regexp.MustCompile(`^(?:\s*[A-Za-z][A-Za-z0-9.\-]*:)+`)
	nonDigit      = regexp.MustCompile(`\D`)
	scriptBlock   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
)

// NormalizeIdentity canonicalizes a channel address such as
// "whatsapp:+51 999-888-777" to "+51999888777". It never fails and is
// idempotent.
func NormalizeIdentity(raw string) string {
	stripped := channelPrefix.ReplaceAllString(strings.TrimSpace(raw), "")
	return "+" + nonDigit.ReplaceAllString(stripped, "")
}

// Sanitize removes script blocks and angle brackets, trims surrounding space
// and truncates to MaxTextLength runes.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	cleaned := scriptBlock.ReplaceAllString(text, "")
	cleaned = strings.NewReplacer("<", "", ">", "").Replace(cleaned)
	cleaned = strings.TrimSpace(cleaned)

	runes := []rune(cleaned)
	if len(runes) > MaxTextLength {
		cleaned = string(runes[:MaxTextLength])
	}
	return cleaned
}

// Lower case-folds text with Spanish rules. A Caser is not safe for
// concurrent use, so one is built per call.
func Lower(text string) string {
	return cases.Lower(language.Spanish).String(text)
}

// Classify decides once what kind of input a queue item carries. A usable
// media attachment wins over any caption text.
func Classify(item *model.QueueItem) model.Inbound {
	text := Sanitize(item.RawMessage)

	if item.HasMedia() && isFetchableURL(item.Media.URL) {
		return model.ImageCandidate{Media: *item.Media, Caption: text}
	}

	if text == "" {
		return model.EmptyEvent{}
	}

	if cmd, ok := ParseCommand(text); ok {
		return cmd
	}
	return model.TextCandidate{Text: text}
}

func isFetchableURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
