// Package dialer places outbound calls and holds their role instruction
// until the platform asks for the call's first TwiML.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/voicecaller/internal/policy"
	"github.com/antoniostano/voicecaller/internal/session"
	"github.com/antoniostano/voicecaller/internal/twilio"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidNumber      = errors.New("destination must be an E.164 number")
	ErrMissingInstruction = errors.New("instruction is required")
)

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Caller starts calls on the telephony platform.
type Caller interface {
	MakeCall(ctx context.Context, params twilio.MakeCallParams) (*twilio.Call, error)
}

type Config struct {
	From          string
	PublicBaseURL string
	// PendingTTL bounds how long an instruction waits for its call to be
	// answered.
	PendingTTL  time.Duration
	RingTimeout int
}

// Request describes an outbound call.
type Request struct {
	To          string            `json:"to"`
	Instruction string            `json:"instruction"`
	Overrides   session.Overrides `json:"overrides"`
}

// Placed is the accepted outbound call.
type Placed struct {
	CallID         string `json:"call_id"`
	Status         string `json:"status"`
	InstructionRef string `json:"instruction_ref"`
}

// Pending is an instruction waiting for its call.
type Pending struct {
	Instruction string
	Overrides   session.Overrides
	CreatedAt   time.Time
}

type Dialer struct {
	caller Caller
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]Pending
}

func New(caller Caller, cfg Config, logger *zap.Logger) *Dialer {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 5 * time.Minute
	}
	if cfg.RingTimeout <= 0 {
		cfg.RingTimeout = 30
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{
		caller:  caller,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		pending: make(map[string]Pending),
	}
}

// Dial stores the instruction under a fresh reference and asks the
// platform to call req.To, pointing its first webhook at that reference.
func (d *Dialer) Dial(ctx context.Context, req Request) (Placed, error) {
	to := strings.TrimSpace(req.To)
	if !e164Pattern.MatchString(to) {
		return Placed{}, ErrInvalidNumber
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return Placed{}, ErrMissingInstruction
	}

	ref := uuid.NewString()
	d.mu.Lock()
	d.pruneLocked()
	d.pending[ref] = Pending{Instruction: instruction, Overrides: req.Overrides, CreatedAt: d.now()}
	d.mu.Unlock()

	call, err := d.caller.MakeCall(ctx, twilio.MakeCallParams{
		To:                  to,
		From:                d.cfg.From,
		URL:                 d.cfg.PublicBaseURL + "/voice/incoming?instruction_ref=" + url.QueryEscape(ref),
		StatusCallback:      d.cfg.PublicBaseURL + "/voice/status",
		StatusCallbackEvent: []string{"initiated", "ringing", "answered", "completed"},
		Timeout:             d.cfg.RingTimeout,
	})
	if err != nil {
		d.mu.Lock()
		delete(d.pending, ref)
		d.mu.Unlock()
		return Placed{}, fmt.Errorf("place call: %w", err)
	}

	d.logger.Info("outbound call placed",
		zap.String("call_id", call.SID),
		zap.String("to", policy.MaskPhone(to)),
		zap.String("status", call.Status),
	)
	return Placed{CallID: call.SID, Status: call.Status, InstructionRef: ref}, nil
}

// Take removes and returns the instruction stored under ref.
func (d *Dialer) Take(ref string) (Pending, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	p, ok := d.pending[ref]
	if ok {
		delete(d.pending, ref)
	}
	return p, ok
}

func (d *Dialer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Dialer) pruneLocked() {
	cutoff := d.now().Add(-d.cfg.PendingTTL)
	for ref, p := range d.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(d.pending, ref)
		}
	}
}
