package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/antoniostano/voicecaller/internal/audio"
	"github.com/antoniostano/voicecaller/internal/callflow"
	"github.com/antoniostano/voicecaller/internal/config"
	"github.com/antoniostano/voicecaller/internal/dialer"
	"github.com/antoniostano/voicecaller/internal/generation"
	"github.com/antoniostano/voicecaller/internal/httpapi"
	"github.com/antoniostano/voicecaller/internal/llm"
	"github.com/antoniostano/voicecaller/internal/observability"
	"github.com/antoniostano/voicecaller/internal/session"
	"github.com/antoniostano/voicecaller/internal/twilio"
	"github.com/antoniostano/voicecaller/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(cfg.MetricsNamespace, reg)

	ctx := context.Background()
	textGen, llmName, err := llm.New(ctx, llm.Config{
		Provider:      cfg.LLMProvider,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
	})
	if err != nil {
		logger.Fatal("llm init failed", zap.Error(err))
	}
	cfg.LLMProvider = llmName
	logger.Info("llm provider", zap.String("provider", llmName))

	var synth voice.Synthesizer
	switch strings.ToLower(cfg.VoiceProvider) {
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			logger.Fatal("VOICE_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is not set")
		}
		synth = newElevenLabs(cfg)
		cfg.VoiceProvider = "elevenlabs"
	case "mock":
		synth = voice.NewMockSynthesizer()
	case "none":
	default:
		if cfg.ElevenLabsAPIKey != "" {
			synth = newElevenLabs(cfg)
			cfg.VoiceProvider = "elevenlabs"
		} else {
			synth = voice.NewMockSynthesizer()
			cfg.VoiceProvider = "mock"
		}
	}
	logger.Info("voice provider", zap.String("provider", cfg.VoiceProvider))

	var store audio.Store
	switch cfg.AudioStore {
	case "postgres":
		pg, err := audio.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("audio store init failed", zap.Error(err))
		}
		defer pg.Close()
		store = pg
	default:
		fs, err := audio.NewFileStore(cfg.AudioDir)
		if err != nil {
			logger.Fatal("audio store init failed", zap.Error(err))
		}
		store = fs
	}

	var renderer callflow.Renderer
	if synth != nil {
		renderer = audio.NewRenderer(synth, store, logger.Named("audio"))
	}

	registry := session.NewRegistry(cfg.MaxHistory, cfg.CallInactivityTimeout)
	orchestrator := callflow.NewOrchestrator(
		registry,
		generation.NewGenerator(textGen),
		renderer,
		settingsFromConfig(cfg),
		metrics,
		logger.Named("callflow"),
	)

	var outbound httpapi.Dialer
	if cfg.TwilioConfigured() {
		client, err := twilio.New(twilio.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			BaseURL:    cfg.TwilioAPIBaseURL,
		})
		if err != nil {
			logger.Fatal("twilio client init failed", zap.Error(err))
		}
		outbound = dialer.New(client, dialer.Config{
			From:          cfg.TwilioFromNumber,
			PublicBaseURL: cfg.PublicBaseURL,
		}, logger.Named("dialer"))
	} else {
		logger.Info("outbound calls disabled: twilio credentials not set")
	}
	if cfg.APIToken == "" {
		logger.Warn("call control api closed: APP_API_TOKEN not set")
	}

	api := httpapi.New(cfg, orchestrator, outbound, store, metrics, reg, logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 30*time.Second)
	audio.StartPruner(runCtx, store, time.Minute, cfg.AudioTTL, logger.Named("audio"))

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete", zap.Int("live_calls", registry.ActiveCount()))
}

func newElevenLabs(cfg config.Config) voice.Synthesizer {
	return voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
		APIKey:         cfg.ElevenLabsAPIKey,
		WSBaseURL:      cfg.ElevenLabsWSBaseURL,
		DefaultVoiceID: cfg.ElevenLabsTTSVoice,
		DefaultModelID: cfg.ElevenLabsTTSModel,
		OutputFormat:   cfg.ElevenLabsTTSOutputFormat,
	})
}

func settingsFromConfig(cfg config.Config) callflow.Settings {
	return callflow.Settings{
		Prompt: generation.PromptConfig{
			BaseTemplate:      cfg.BasePrompt,
			Instruction:       cfg.DefaultRole,
			OpeningDirective:  cfg.OpeningDirective,
			MaxSpokenWords:    cfg.MaxSpokenWords,
			Temperature:       cfg.LLMTemperature,
			MaxTokens:         cfg.LLMMaxTokens,
			PresencePenalty:   cfg.PresencePenalty,
			FrequencyPenalty:  cfg.FrequencyPenalty,
			GenerationTimeout: cfg.LLMTimeout,
			OpeningFallback:   cfg.OpeningFallback,
			RepeatFallback:    cfg.RepeatFallback,
		},
		Voice: voice.Config{
			VoiceID: cfg.ElevenLabsTTSVoice,
			ModelID: cfg.ElevenLabsTTSModel,
			Settings: voice.Settings{
				Stability:       cfg.VoiceStability,
				SimilarityBoost: cfg.VoiceSimilarity,
				Style:           cfg.VoiceStyle,
				SpeakerBoost:    cfg.VoiceSpeakerBoost,
			},
		},
		RenderAudio:      cfg.RenderAudio,
		RenderTimeout:    cfg.TTSTimeout,
		ListenHints:      cfg.ListenHints,
		ListenTimeout:    cfg.ListenTimeout,
		GenericGreeting:  cfg.GenericGreeting,
		FollowUp:         cfg.FollowUpPrompt,
		SilenceGoodbye:   cfg.SilenceGoodbye,
		Decline:          cfg.DeclineMessage,
		MaxSilentPrompts: cfg.MaxSilentPrompts,
	}
}
