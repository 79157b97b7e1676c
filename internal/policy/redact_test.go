package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Escríbeme a sam@example.com o al +57 (300) 123-9876 y uso la 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
	if strings.Contains(out, "4242") || strings.Contains(out, "9876") {
		t.Fatalf("digits leaked: %q", out)
	}
}

func TestRedactPIIUnchanged(t *testing.T) {
	out, changed := RedactPII("sí, claro, a las 3")
	if changed || out != "sí, claro, a las 3" {
		t.Fatalf("RedactPII() = %q, %v", out, changed)
	}
}

func TestRedactDigits(t *testing.T) {
	if got := RedactDigits("1"); got != "1" {
		t.Fatalf("RedactDigits(1) = %q", got)
	}
	if got := RedactDigits("1032456789"); got != "[REDACTED_DIGITS]" {
		t.Fatalf("RedactDigits(id) = %q", got)
	}
}

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+573001234567": "+57******4567",
		"3001234567":    "******4567",
		"12345":         "*****",
		"":              "",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}
