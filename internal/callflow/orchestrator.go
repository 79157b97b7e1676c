// Package callflow drives a call through its phases in response to
// telephony callbacks and decides what the platform does next.
package callflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/voicecaller/internal/audio"
	"github.com/antoniostano/voicecaller/internal/generation"
	"github.com/antoniostano/voicecaller/internal/observability"
	"github.com/antoniostano/voicecaller/internal/policy"
	"github.com/antoniostano/voicecaller/internal/protocol"
	"github.com/antoniostano/voicecaller/internal/reliability"
	"github.com/antoniostano/voicecaller/internal/session"
	"github.com/antoniostano/voicecaller/internal/voice"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	scopeName         = "github.com/antoniostano/voicecaller/internal/callflow"
	faultLeaseTimeout = 2 * time.Second
)

// Renderer produces playable audio for agent text.
type Renderer interface {
	Render(ctx context.Context, callID, nonce string, seq int, text string, cfg voice.Config, timeout time.Duration) reliability.Result[audio.Artifact]
}

// Orchestrator handles the callbacks of every live call. Operations never
// fail: each returns the action the platform should take, falling back to
// configured text when a dependency misbehaves.
type Orchestrator struct {
	registry  *session.Registry
	generator *generation.Generator
	renderer  Renderer
	settings  Settings
	metrics   *observability.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewOrchestrator wires the orchestrator to the registry and installs the
// registry hooks. renderer may be nil, in which case text is always spoken.
func NewOrchestrator(
	registry *session.Registry,
	generator *generation.Generator,
	renderer Renderer,
	settings Settings,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		registry:  registry,
		generator: generator,
		renderer:  renderer,
		settings:  settings,
		metrics:   metrics,
		logger:    logger,
		tracer:    otel.Tracer(scopeName),
	}
	registry.SetCreateHook(func(string) {
		metrics.CallStarted()
	})
	registry.SetDisposeHook(func(snap session.Snapshot, reason session.DisposeReason) {
		metrics.CallEnded(string(reason))
		logger.Info("call disposed",
			zap.String("call_id", snap.ID),
			zap.String("phase", string(snap.Phase)),
			zap.String("reason", string(reason)),
			zap.Int("turns", len(snap.Turns)),
			zap.Duration("duration", snap.LastActivityAt.Sub(snap.CreatedAt)),
		)
	})
	return o
}

// OnIncoming greets a new call. A repeated incoming event for a call that
// was already greeted replays the last thing the agent said.
func (o *Orchestrator) OnIncoming(ctx context.Context, callID string) (action protocol.Action) {
	ctx, span := o.tracer.Start(ctx, "callflow.incoming", trace.WithAttributes(attribute.String("call.id", callID)))
	defer span.End()
	defer o.recoverFault(ctx, callID, &action)

	lease, _, err := o.registry.AcquireOrCreate(ctx, callID)
	if err != nil {
		return o.leaseFailure(callID, "incoming", err)
	}
	defer lease.Release()
	lease.Touch()
	s := lease.Session()

	if s.Phase != session.PhaseNew {
		o.metrics.CallEvent("duplicate_incoming")
		o.logger.Info("duplicate incoming event", zap.String("call_id", callID), zap.String("phase", string(s.Phase)))
		return protocol.Speak(o.replayText(s), o.listen())
	}

	if err := s.Transition(session.PhaseGreeting); err != nil {
		return o.faultLocked(lease, err)
	}

	prompt := o.settings.promptFor(s)
	var text string
	if strings.TrimSpace(prompt.Instruction) == "" {
		text = o.settings.GenericGreeting
		o.metrics.CallEvent("generic_greeting")
	} else {
		turn := o.generator.Opening(ctx, prompt)
		o.observeTurn(callID, "opening", turn)
		text = turn.Text
	}
	s.Opening = text

	if err := s.Transition(session.PhaseListening); err != nil {
		return o.faultLocked(lease, err)
	}
	o.logger.Info("call greeted", zap.String("call_id", callID), zap.Bool("instruction", s.InstructionSet))
	return o.deliver(ctx, s, text)
}

// OnCallerInput answers one caller utterance or keypress sequence.
func (o *Orchestrator) OnCallerInput(ctx context.Context, callID, raw string, kind protocol.InputKind) (action protocol.Action) {
	ctx, span := o.tracer.Start(ctx, "callflow.caller_input", trace.WithAttributes(
		attribute.String("call.id", callID),
		attribute.String("input.kind", string(kind)),
	))
	defer span.End()
	defer o.recoverFault(ctx, callID, &action)

	lease, err := o.registry.Acquire(ctx, callID)
	if err != nil {
		return o.leaseFailure(callID, "caller_input", err)
	}
	defer lease.Release()
	s := lease.Session()

	if s.Phase == session.PhaseNew {
		o.metrics.CallEvent("input_before_greeting")
		o.logger.Warn("caller input before greeting", zap.String("call_id", callID))
		return protocol.DeclineAndHangup(o.settings.Decline)
	}
	lease.Touch()

	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		s.SilentPrompts++
		if o.settings.MaxSilentPrompts > 0 && s.SilentPrompts >= o.settings.MaxSilentPrompts {
			o.metrics.CallEvent("silence_hangup")
			o.logger.Info("caller silent, hanging up", zap.String("call_id", callID), zap.Int("silent_prompts", s.SilentPrompts))
			if err := s.Transition(session.PhaseEnded); err != nil {
				return o.faultLocked(lease, err)
			}
			lease.Dispose(session.DisposeTerminal)
			return protocol.DeclineAndHangup(o.settings.SilenceGoodbye)
		}
		o.metrics.CallEvent("empty_input")
		return protocol.Speak(o.settings.FollowUp, o.listen())
	}
	s.SilentPrompts = 0

	started := time.Now()
	conv := s.Conversation()
	conv.Append(session.RoleCaller, text)
	if err := s.Transition(session.PhaseResponding); err != nil {
		return o.faultLocked(lease, err)
	}
	redacted, _ := policy.RedactPII(text)
	o.logger.Debug("caller turn", zap.String("call_id", callID), zap.String("kind", string(kind)), zap.String("text", redacted))

	turn := o.generator.Reply(ctx, o.settings.promptFor(s), conv.Turns())
	o.observeTurn(callID, "reply", turn)
	conv.Append(session.RoleAgent, turn.Text)

	if err := s.Transition(session.PhaseListening); err != nil {
		return o.faultLocked(lease, err)
	}
	action = o.deliver(ctx, s, turn.Text)
	o.metrics.ObserveStage(observability.StageTurnTotal, string(reliability.StatusOK), time.Since(started))
	return action
}

// OnStatus records a platform status callback. Terminal statuses end the
// call and drop its state.
func (o *Orchestrator) OnStatus(ctx context.Context, callID, status string) (action protocol.Action) {
	ctx, span := o.tracer.Start(ctx, "callflow.status", trace.WithAttributes(
		attribute.String("call.id", callID),
		attribute.String("call.status", status),
	))
	defer span.End()
	defer o.recoverFault(ctx, callID, &action)

	lease, err := o.registry.Acquire(ctx, callID)
	if err != nil {
		o.logger.Debug("status for unknown call", zap.String("call_id", callID), zap.String("status", status), zap.Error(err))
		return protocol.NoAction()
	}
	defer lease.Release()
	lease.Touch()
	s := lease.Session()
	s.LastStatus = status
	o.metrics.CallEvent("status_" + status)

	if !protocol.IsTerminalStatus(status) {
		o.logger.Debug("call status", zap.String("call_id", callID), zap.String("status", status))
		return protocol.NoAction()
	}
	if err := s.Transition(session.PhaseEnded); err != nil {
		o.logger.Warn("terminal status on finished call", zap.String("call_id", callID), zap.Error(err))
	}
	lease.Dispose(session.DisposeTerminal)
	return protocol.NoAction()
}

// OnUnrecoverableFault ends a call after an internal failure.
func (o *Orchestrator) OnUnrecoverableFault(ctx context.Context, callID string, cause error) protocol.Action {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), faultLeaseTimeout)
	defer cancel()

	lease, err := o.registry.Acquire(ctx, callID)
	if err != nil {
		o.metrics.CallEvent("fault")
		o.logger.Error("call fault", zap.String("call_id", callID), zap.Error(cause))
		return protocol.DeclineAndHangup(o.settings.Decline)
	}
	return o.faultLocked(lease, cause)
}

// SetInstruction fixes the role instruction and overrides of a call that
// has not been greeted yet, registering it when it is unseen.
func (o *Orchestrator) SetInstruction(ctx context.Context, callID, instruction string, overrides session.Overrides) error {
	lease, created, err := o.registry.AcquireOrCreate(ctx, callID)
	if err != nil {
		return err
	}
	defer lease.Release()
	if err := lease.Session().SetInstruction(instruction, overrides); err != nil {
		return err
	}
	lease.Touch()
	o.logger.Info("call instruction set", zap.String("call_id", callID), zap.Bool("registered", created))
	return nil
}

func (o *Orchestrator) Snapshot(ctx context.Context, callID string) (session.Snapshot, error) {
	return o.registry.Inspect(ctx, callID)
}

// deliver turns agent text into the next action, playing rendered audio
// when the call renders and the renderer succeeds.
func (o *Orchestrator) deliver(ctx context.Context, s *session.CallSession, text string) protocol.Action {
	listen := o.listen()
	if o.renderer == nil || !o.settings.renderFor(s) {
		return protocol.Speak(text, listen)
	}
	res := o.renderer.Render(ctx, s.ID, s.AudioNonce, s.NextAudioSeq(), text, o.settings.voiceFor(s), o.settings.RenderTimeout)
	o.metrics.ObserveStage(observability.StageRender, string(res.Status), res.Latency)
	if !res.OK() {
		o.metrics.ProviderError("voice", string(res.Status))
		return protocol.Speak(text, listen)
	}
	return protocol.PlayAudio(res.Value.Ref, listen)
}

func (o *Orchestrator) listen() protocol.Listen {
	return protocol.Listen{
		Enabled:        true,
		Hints:          o.settings.ListenHints,
		TimeoutSeconds: o.settings.ListenTimeout,
	}
}

func (o *Orchestrator) replayText(s *session.CallSession) string {
	if text := s.LastAgentText(); text != "" {
		return text
	}
	return o.settings.GenericGreeting
}

func (o *Orchestrator) observeTurn(callID, variant string, turn generation.Turn) {
	o.metrics.ObserveStage(observability.StageGeneration, string(turn.Status), turn.Latency)
	if !turn.Fallback {
		return
	}
	o.metrics.ProviderError("llm", string(turn.Status))
	o.logger.Warn("generation fallback",
		zap.String("call_id", callID),
		zap.String("variant", variant),
		zap.String("status", string(turn.Status)),
		zap.Duration("latency", turn.Latency),
		zap.Error(turn.Err),
	)
}

// leaseFailure maps a registry error to an action.
func (o *Orchestrator) leaseFailure(callID, op string, err error) protocol.Action {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// Another event for the call is still being served; keep the caller
		// on the line and let that invocation finish the turn.
		o.metrics.CallEvent("lease_timeout")
		o.logger.Warn("call busy", zap.String("call_id", callID), zap.String("op", op))
		return protocol.Speak(o.settings.FollowUp, o.listen())
	case errors.Is(err, session.ErrInvalidCallID):
		o.metrics.CallEvent("malformed")
		o.logger.Warn("malformed call id", zap.String("op", op), zap.Error(err))
	default:
		o.metrics.CallEvent("unknown_call")
		o.logger.Warn("unknown call", zap.String("call_id", callID), zap.String("op", op))
	}
	return protocol.DeclineAndHangup(o.settings.Decline)
}

// faultLocked ends the leased call after an internal failure.
func (o *Orchestrator) faultLocked(lease *session.Lease, cause error) protocol.Action {
	s := lease.Session()
	o.metrics.CallEvent("fault")
	o.logger.Error("call fault", zap.String("call_id", s.ID), zap.String("phase", string(s.Phase)), zap.Error(cause))
	_ = s.Transition(session.PhaseError)
	lease.Dispose(session.DisposeFault)
	return protocol.DeclineAndHangup(o.settings.Decline)
}

// recoverFault turns a panic in an operation into a fault of that call.
// It runs after the operation released its lease.
func (o *Orchestrator) recoverFault(ctx context.Context, callID string, action *protocol.Action) {
	r := recover()
	if r == nil {
		return
	}
	*action = o.OnUnrecoverableFault(ctx, callID, fmt.Errorf("panic: %v", r))
}
