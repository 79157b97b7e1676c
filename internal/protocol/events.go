package protocol

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedEvent marks callback payloads that cannot be attributed to a
// call or are otherwise unusable.
var ErrMalformedEvent = errors.New("malformed callback event")

// InputKind tells how the caller produced an input.
type InputKind string

const (
	InputSpeech InputKind = "VOZ"
	InputDTMF   InputKind = "DTMF"
)

// CallStatus values reported by the platform.
const (
	StatusQueued     = "queued"
	StatusInitiated  = "initiated"
	StatusRinging    = "ringing"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusBusy       = "busy"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no-answer"
	StatusCanceled   = "canceled"
)

// IsTerminalStatus reports whether status ends the call.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	default:
		return false
	}
}

// IncomingCall is the first callback of a call.
type IncomingCall struct {
	CallSID string
	From    string
	To      string
	// Direction is e.g. "inbound" or "outbound-api".
	Direction string
}

// CallerInput carries recognized speech or keypad digits.
type CallerInput struct {
	CallSID    string
	Text       string
	Kind       InputKind
	Confidence float64
}

// StatusEvent reports a call status change.
type StatusEvent struct {
	CallSID  string
	Status   string
	Duration int
}

// RecordingEvent reports a finished call recording.
type RecordingEvent struct {
	CallSID      string
	RecordingSID string
	RecordingURL string
	Duration     int
}

func ParseIncomingCall(form url.Values) (IncomingCall, error) {
	sid, err := callSID(form)
	if err != nil {
		return IncomingCall{}, err
	}
	return IncomingCall{
		CallSID:   sid,
		From:      strings.TrimSpace(form.Get("From")),
		To:        strings.TrimSpace(form.Get("To")),
		Direction: strings.TrimSpace(form.Get("Direction")),
	}, nil
}

// ParseCallerInput prefers keypad digits over recognized speech. Both may be
// empty when the listen window expired.
func ParseCallerInput(form url.Values) (CallerInput, error) {
	sid, err := callSID(form)
	if err != nil {
		return CallerInput{}, err
	}
	in := CallerInput{CallSID: sid, Kind: InputSpeech, Text: form.Get("SpeechResult")}
	if digits := strings.TrimSpace(form.Get("Digits")); digits != "" {
		in.Kind = InputDTMF
		in.Text = digits
	}
	if raw := strings.TrimSpace(form.Get("Confidence")); raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return CallerInput{}, fmt.Errorf("%w: Confidence %q", ErrMalformedEvent, raw)
		}
		in.Confidence = c
	}
	return in, nil
}

func ParseStatusEvent(form url.Values) (StatusEvent, error) {
	sid, err := callSID(form)
	if err != nil {
		return StatusEvent{}, err
	}
	status := strings.ToLower(strings.TrimSpace(form.Get("CallStatus")))
	if status == "" {
		return StatusEvent{}, fmt.Errorf("%w: CallStatus is required", ErrMalformedEvent)
	}
	ev := StatusEvent{CallSID: sid, Status: status}
	if raw := strings.TrimSpace(form.Get("CallDuration")); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			ev.Duration = d
		}
	}
	return ev, nil
}

func ParseRecordingEvent(form url.Values) (RecordingEvent, error) {
	sid, err := callSID(form)
	if err != nil {
		return RecordingEvent{}, err
	}
	ev := RecordingEvent{
		CallSID:      sid,
		RecordingSID: strings.TrimSpace(form.Get("RecordingSid")),
		RecordingURL: strings.TrimSpace(form.Get("RecordingUrl")),
	}
	if raw := strings.TrimSpace(form.Get("RecordingDuration")); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			ev.Duration = d
		}
	}
	return ev, nil
}

func callSID(form url.Values) (string, error) {
	sid := strings.TrimSpace(form.Get("CallSid"))
	if sid == "" {
		return "", fmt.Errorf("%w: CallSid is required", ErrMalformedEvent)
	}
	return sid, nil
}
