// Package policy masks personal data before it reaches logs.
package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern     = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern    = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	digitRunPattern = regexp.MustCompile(`\d{6,}`)
)

// RedactPII masks emails, card numbers and phone numbers in free text.
// Card numbers are matched before phones so they keep their own marker.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range []struct {
		pattern *regexp.Regexp
		marker  string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// RedactDigits masks keypad input long enough to be an identifier such as
// a national id or account number.
func RedactDigits(digits string) string {
	return digitRunPattern.ReplaceAllString(digits, "[REDACTED_DIGITS]")
}

// MaskPhone keeps the country prefix and the last four digits of a phone
// number, e.g. "+57******4567".
func MaskPhone(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 6 {
		return strings.Repeat("*", len(number))
	}
	head := 3
	if !strings.HasPrefix(number, "+") {
		head = 0
	}
	return number[:head] + strings.Repeat("*", len(number)-head-4) + number[len(number)-4:]
}
