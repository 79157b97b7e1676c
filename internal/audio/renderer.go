package audio

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/voicecaller/internal/reliability"
	"github.com/antoniostano/voicecaller/internal/voice"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	scopeName      = "github.com/antoniostano/voicecaller/internal/audio"
	defaultTimeout = 3 * time.Second
)

// Renderer turns agent text into a stored artifact the telephony platform
// can fetch.
type Renderer struct {
	synth    voice.Synthesizer
	store    Store
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

func NewRenderer(synth voice.Synthesizer, store Store, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		synth: synth,
		store:  store,
		tracer: otel.Tracer(scopeName),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Render synthesizes text and stores it under a reference built from the
// call id, the session nonce and seq. Synthesis and storage share the
// timeout; a result that is not OK means the caller should speak the text
// instead. An empty nonce gets a random one.
func (r *Renderer) Render(ctx context.Context, callID, nonce string, seq int, text string, cfg voice.Config, timeout time.Duration) reliability.Result[Artifact] {
	if nonce == "" {
		nonce = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	ctx, span := r.tracer.Start(ctx, "audio.render", trace.WithAttributes(
		attribute.String("call.id", callID),
		attribute.Int("audio.seq", seq),
	))
	defer span.End()

	if timeout <= 0 {
		timeout = defaultTimeout
	}
	res := reliability.Await(ctx, timeout, func(ctx context.Context) (Artifact, error) {
		out, err := r.synth.Synthesize(ctx, text, cfg)
		if err != nil {
			return Artifact{}, err
		}
		data, ext, mime, err := encodeForPlayback(out)
		if err != nil {
			return Artifact{}, err
		}
		a := Artifact{
			Ref:       fmt.Sprintf("%s-%s-%04d%s", callID, nonce, seq, ext),
			CallID:    callID,
			MIMEType:  mime,
			Data:      data,
			CreatedAt: r.now(),
		}
		if err := r.store.Put(ctx, a); err != nil {
			return Artifact{}, fmt.Errorf("store artifact: %w", err)
		}
		return a, nil
	})

	if !res.OK() {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Status))
		r.logger.Warn("audio render unavailable",
			zap.String("call_id", callID),
			zap.Int("seq", seq),
			zap.String("status", string(res.Status)),
			zap.Duration("latency", res.Latency),
			zap.Error(res.Err),
		)
		return res
	}
	span.SetAttributes(attribute.String("audio.ref", res.Value.Ref))
	return res
}

// encodeForPlayback maps provider output to a container the telephony
// platform plays. Raw PCM is wrapped as WAV.
func encodeForPlayback(a voice.Audio) ([]byte, string, string, error) {
	format := strings.ToLower(strings.TrimSpace(a.Format))
	switch {
	case strings.HasPrefix(format, "mp3"):
		return a.Data, ".mp3", "audio/mpeg", nil
	case strings.HasPrefix(format, "pcm_"):
		rate, err := strconv.Atoi(strings.TrimPrefix(format, "pcm_"))
		if err != nil || rate <= 0 {
			return nil, "", "", fmt.Errorf("unsupported pcm format %q", a.Format)
		}
		return EncodeWAVPCM16LE(a.Data, rate), ".wav", "audio/wav", nil
	default:
		return nil, "", "", fmt.Errorf("unsupported audio format %q", a.Format)
	}
}
