// Package speech prepares generated text for speaking on a phone line.
package speech

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern          = regexp.MustCompile(`https?://\S+`)
	fencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern   = regexp.MustCompile("`[^`]*`")
	markdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)

	markupReplacer = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"/", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"<", " ",
		">", " ",
		"`", " ",
	)
)

// Normalize removes markup, quotes and symbol noise from model text and
// collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = fencedCodePattern.ReplaceAllString(raw, " ")
	raw = inlineCodePattern.ReplaceAllString(raw, " ")
	raw = markdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = urlPattern.ReplaceAllString(raw, " ")
	raw = markupReplacer.Replace(raw)

	out := make([]rune, 0, len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				out = append(out, ' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk, unicode.Co):
			// Emoji and symbol glyphs sound unnatural when spoken.
			continue
		case isSafePunctuation(r):
			if isClosingPunctuation(r) && len(out) > 0 && out[len(out)-1] == ' ' {
				out = out[:len(out)-1]
			}
			out = append(out, r)
			prevSpace = false
		case unicode.IsPunct(r):
			if !prevSpace {
				out = append(out, ' ')
				prevSpace = true
			}
		default:
			out = append(out, r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(string(out))
}

// WordCount reports the number of whitespace separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func isSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', '¿', '¡', ':', ';', '\'', '-', '(', ')':
		return true
	default:
		return false
	}
}

func isClosingPunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', ')':
		return true
	default:
		return false
	}
}
