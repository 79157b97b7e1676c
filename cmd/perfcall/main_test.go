package main

import (
	"testing"
	"time"
)

func TestParsePrompt(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want prompt
	}{
		{
			name: "say with listen",
			doc: `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Gather input="speech dtmf" action="/voice/process_speech"><Say voice="Polly.Mia">Hola, ¿me escuchas?</Say></Gather>
  <Redirect method="POST">/voice/process_speech</Redirect>
</Response>`,
			want: prompt{Text: "Hola, ¿me escuchas?", Listen: true},
		},
		{
			name: "play with listen",
			doc:  `<Response><Gather><Play>https://x/audio/CA1-ab-0001.mp3</Play></Gather></Response>`,
			want: prompt{Audio: "https://x/audio/CA1-ab-0001.mp3", Listen: true},
		},
		{
			name: "decline",
			doc:  `<Response><Say>Hasta luego.</Say><Hangup></Hangup></Response>`,
			want: prompt{Text: "Hasta luego.", Hangup: true},
		},
		{
			name: "empty",
			doc:  `<Response></Response>`,
			want: prompt{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parsePrompt([]byte(tc.doc))
			if err != nil {
				t.Fatalf("parsePrompt() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("parsePrompt() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []time.Duration{400 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond, 200 * time.Millisecond}
	if got := percentile(values, 0); got != 100*time.Millisecond {
		t.Fatalf("p0 = %s", got)
	}
	if got := percentile(values, 1); got != 400*time.Millisecond {
		t.Fatalf("p100 = %s", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("empty percentile = %s", got)
	}
	if values[0] != 400*time.Millisecond {
		t.Fatalf("percentile reordered its input")
	}
}

func TestSplitTexts(t *testing.T) {
	if got := splitTexts(" a | |b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitTexts() = %#v", got)
	}
	if got := splitTexts(""); len(got) != len(defaultUtterances) {
		t.Fatalf("splitTexts(\"\") = %#v", got)
	}
}
