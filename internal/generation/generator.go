package generation

import (
	"context"
	"errors"
	"time"

	"github.com/antoniostano/voicecaller/internal/reliability"
	"github.com/antoniostano/voicecaller/internal/session"
	"github.com/antoniostano/voicecaller/internal/speech"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	scopeName      = "github.com/antoniostano/voicecaller/internal/generation"
	defaultTimeout = 4 * time.Second
)

var errEmptyOutput = errors.New("generator returned no speakable text")

// Turn is the outcome of one generation. Text is always speakable: when
// the port fails, Text holds the configured fallback and Fallback is set.
type Turn struct {
	Text     string
	Status   reliability.Status
	Fallback bool
	Err      error
	Latency  time.Duration
}

// Generator produces the next agent utterance through a TextGenerator.
type Generator struct {
	port   TextGenerator
	tracer trace.Tracer
}

func NewGenerator(port TextGenerator) *Generator {
	return &Generator{port: port, tracer: otel.Tracer(scopeName)}
}

// Opening generates the first utterance of an agent-initiated call.
func (g *Generator) Opening(ctx context.Context, cfg PromptConfig) Turn {
	return g.generate(ctx, cfg, VariantOpening, nil)
}

// Reply generates the answer to the latest caller turn in turns.
func (g *Generator) Reply(ctx context.Context, cfg PromptConfig, turns []session.Turn) Turn {
	return g.generate(ctx, cfg, VariantReply, turns)
}

func (g *Generator) generate(ctx context.Context, cfg PromptConfig, v Variant, turns []session.Turn) Turn {
	ctx, span := g.tracer.Start(ctx, "generation.generate", trace.WithAttributes(
		attribute.String("generation.variant", string(v)),
		attribute.Int("generation.turns", len(turns)),
	))
	defer span.End()

	req := Request{
		Messages:         BuildMessages(cfg, v, turns),
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
		PresencePenalty:  cfg.PresencePenalty,
		FrequencyPenalty: cfg.FrequencyPenalty,
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	res := reliability.Await(ctx, timeout, func(ctx context.Context) (string, error) {
		text, err := g.port.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		text = speech.Normalize(text)
		if text == "" {
			return "", errEmptyOutput
		}
		return text, nil
	})

	out := Turn{Text: res.Value, Status: res.Status, Err: res.Err, Latency: res.Latency}
	if !res.OK() {
		out.Text = speech.Normalize(cfg.Fallback(v))
		out.Fallback = true
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Status))
	}
	span.SetAttributes(
		attribute.String("generation.status", string(out.Status)),
		attribute.Bool("generation.fallback", out.Fallback),
	)
	return out
}
