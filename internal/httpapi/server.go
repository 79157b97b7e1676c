package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/audio"
	"github.com/antoniostano/voicecaller/internal/config"
	"github.com/antoniostano/voicecaller/internal/dialer"
	"github.com/antoniostano/voicecaller/internal/observability"
	"github.com/antoniostano/voicecaller/internal/protocol"
	"github.com/antoniostano/voicecaller/internal/session"
)

// CallFlow reacts to telephony callbacks for live calls.
type CallFlow interface {
	OnIncoming(ctx context.Context, callID string) protocol.Action
	OnCallerInput(ctx context.Context, callID, raw string, kind protocol.InputKind) protocol.Action
	OnStatus(ctx context.Context, callID, status string) protocol.Action
	OnUnrecoverableFault(ctx context.Context, callID string, cause error) protocol.Action
	SetInstruction(ctx context.Context, callID, instruction string, overrides session.Overrides) error
	Snapshot(ctx context.Context, callID string) (session.Snapshot, error)
}

// Dialer places outbound calls. It is optional.
type Dialer interface {
	Dial(ctx context.Context, req dialer.Request) (dialer.Placed, error)
	Take(ref string) (dialer.Pending, bool)
}

type Server struct {
	cfg      config.Config
	flow     CallFlow
	dialer   Dialer
	store    audio.Store
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	twiml    protocol.TwiMLConfig
}

func New(
	cfg config.Config,
	flow CallFlow,
	dial Dialer,
	store audio.Store,
	metrics *observability.Metrics,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		flow:     flow,
		dialer:   dial,
		store:    store,
		metrics:  metrics,
		gatherer: gatherer,
		logger:   logger,
		twiml: protocol.TwiMLConfig{
			Language:     cfg.Language,
			Voice:        cfg.PlatformVoice,
			InputURL:     cfg.PublicBaseURL + "/voice/process_speech",
			AudioBaseURL: cfg.PublicBaseURL + "/audio",
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler(s.gatherer))
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Route("/voice", func(r chi.Router) {
		r.Use(s.recoverWebhook)
		r.Use(s.verifyTwilioSignature)
		r.Use(s.webhookDeadline)
		r.Post("/incoming", s.handleIncoming)
		r.Post("/process_speech", s.handleCallerInput)
		r.Post("/status", s.handleStatus)
		r.Post("/recording", s.handleRecording)
	})

	r.Get("/audio/{ref}", s.handleAudio)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIToken)
		r.Post("/v1/calls", s.handleCreateCall)
		r.Get("/v1/calls/{id}", s.handleGetCall)
		r.Put("/v1/calls/{id}/instruction", s.handleSetInstruction)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"llm_provider":   s.cfg.LLMProvider,
		"voice_provider": s.cfg.VoiceProvider,
		"audio_store":    s.cfg.AudioStore,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]bool{
		"public_base_url": s.cfg.PublicBaseURL != "",
		"audio_store":     s.store != nil,
		"outbound_calls":  s.dialer != nil,
		"api_token":       s.cfg.APIToken != "",
	}
	status := http.StatusOK
	state := "ready"
	if !checks["public_base_url"] {
		// Twilio needs absolute callback URLs.
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	respondJSON(w, status, map[string]any{"status": state, "checks": checks})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) writeTwiML(w http.ResponseWriter, callID string, a protocol.Action) {
	body, err := protocol.RenderTwiML(s.twiml, a)
	if err != nil {
		s.logger.Error("render twiml failed", zap.String("call_id", callID), zap.Error(err))
		body, _ = protocol.RenderTwiML(s.twiml, protocol.DeclineAndHangup(s.cfg.DeclineMessage))
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func trimmed(v string) string {
	return strings.TrimSpace(v)
}
