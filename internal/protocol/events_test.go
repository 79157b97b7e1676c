package protocol

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseCallerInput(t *testing.T) {
	cases := []struct {
		name     string
		form     url.Values
		wantText string
		wantKind InputKind
	}{
		{
			name:     "speech",
			form:     url.Values{"CallSid": {"CA1"}, "SpeechResult": {"sí, claro"}, "Confidence": {"0.91"}},
			wantText: "sí, claro",
			wantKind: InputSpeech,
		},
		{
			name:     "digits win over speech",
			form:     url.Values{"CallSid": {"CA1"}, "SpeechResult": {"uno"}, "Digits": {"1"}},
			wantText: "1",
			wantKind: InputDTMF,
		},
		{
			name:     "listen expired",
			form:     url.Values{"CallSid": {"CA1"}},
			wantText: "",
			wantKind: InputSpeech,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := ParseCallerInput(tc.form)
			if err != nil {
				t.Fatalf("ParseCallerInput() error = %v", err)
			}
			if in.Text != tc.wantText || in.Kind != tc.wantKind || in.CallSID != "CA1" {
				t.Fatalf("ParseCallerInput() = %+v", in)
			}
		})
	}
}

func TestParseRejectsMissingCallSid(t *testing.T) {
	if _, err := ParseIncomingCall(url.Values{}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ParseIncomingCall() error = %v, want ErrMalformedEvent", err)
	}
	if _, err := ParseCallerInput(url.Values{"SpeechResult": {"hola"}}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ParseCallerInput() error = %v, want ErrMalformedEvent", err)
	}
	if _, err := ParseStatusEvent(url.Values{"CallSid": {"CA1"}}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ParseStatusEvent() without status error = %v, want ErrMalformedEvent", err)
	}
	if _, err := ParseCallerInput(url.Values{"CallSid": {"CA1"}, "Confidence": {"high"}}); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("ParseCallerInput() bad confidence error = %v, want ErrMalformedEvent", err)
	}
}

func TestParseStatusEvent(t *testing.T) {
	ev, err := ParseStatusEvent(url.Values{"CallSid": {"CA1"}, "CallStatus": {"Completed"}, "CallDuration": {"42"}})
	if err != nil {
		t.Fatalf("ParseStatusEvent() error = %v", err)
	}
	if ev.Status != StatusCompleted || ev.Duration != 42 {
		t.Fatalf("ParseStatusEvent() = %+v", ev)
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range []string{"completed", "failed", "busy", "no-answer", "canceled", " Completed "} {
		if !IsTerminalStatus(s) {
			t.Fatalf("IsTerminalStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"ringing", "in-progress", "queued", ""} {
		if IsTerminalStatus(s) {
			t.Fatalf("IsTerminalStatus(%q) = true", s)
		}
	}
}
