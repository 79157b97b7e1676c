package dialer

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/voicecaller/internal/twilio"
)

type stubCaller struct {
	params []twilio.MakeCallParams
	err    error
}

func (c *stubCaller) MakeCall(_ context.Context, params twilio.MakeCallParams) (*twilio.Call, error) {
	c.params = append(c.params, params)
	if c.err != nil {
		return nil, c.err
	}
	return &twilio.Call{SID: "CA900", Status: "queued"}, nil
}

func TestDialStoresInstructionForIncomingWebhook(t *testing.T) {
	caller := &stubCaller{}
	d := New(caller, Config{From: "+15550001111", PublicBaseURL: "https://calls.example.com/"}, nil)

	placed, err := d.Dial(context.Background(), Request{To: "+573001234567", Instruction: "  Confirmas la cita de mañana. "})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if placed.CallID != "CA900" || placed.Status != "queued" || placed.InstructionRef == "" {
		t.Fatalf("Dial() = %+v", placed)
	}

	p := caller.params[0]
	if p.From != "+15550001111" || p.To != "+573001234567" || p.Timeout != 30 {
		t.Fatalf("params = %+v", p)
	}
	if p.StatusCallback != "https://calls.example.com/voice/status" {
		t.Fatalf("StatusCallback = %q", p.StatusCallback)
	}
	u, err := url.Parse(p.URL)
	if err != nil || !strings.HasPrefix(p.URL, "https://calls.example.com/voice/incoming?") {
		t.Fatalf("URL = %q", p.URL)
	}
	if got := u.Query().Get("instruction_ref"); got != placed.InstructionRef {
		t.Fatalf("instruction_ref = %q, want %q", got, placed.InstructionRef)
	}

	pending, ok := d.Take(placed.InstructionRef)
	if !ok || pending.Instruction != "Confirmas la cita de mañana." {
		t.Fatalf("Take() = %+v, %v", pending, ok)
	}
	if _, ok := d.Take(placed.InstructionRef); ok {
		t.Fatalf("second Take() should miss")
	}
}

func TestDialValidatesRequest(t *testing.T) {
	d := New(&stubCaller{}, Config{}, nil)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "missing plus", req: Request{To: "3001234567", Instruction: "x"}, want: ErrInvalidNumber},
		{name: "letters", req: Request{To: "+57300abc4567", Instruction: "x"}, want: ErrInvalidNumber},
		{name: "no instruction", req: Request{To: "+573001234567", Instruction: "  "}, want: ErrMissingInstruction},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Dial(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("Dial() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDialFailureDropsPending(t *testing.T) {
	d := New(&stubCaller{err: &twilio.Error{Code: 21211, Message: "invalid"}}, Config{}, nil)

	_, err := d.Dial(context.Background(), Request{To: "+573001234567", Instruction: "x"})
	var apiErr *twilio.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Dial() error = %v, want twilio error", err)
	}
	if d.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d, want 0", d.PendingCount())
	}
}

func TestPendingInstructionsExpire(t *testing.T) {
	d := New(&stubCaller{}, Config{PendingTTL: time.Minute}, nil)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	placed, err := d.Dial(context.Background(), Request{To: "+573001234567", Instruction: "x"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := d.Take(placed.InstructionRef); ok {
		t.Fatalf("Take() returned an expired instruction")
	}
}
