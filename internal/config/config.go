package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice caller service.
type Config struct {
	BindAddr              string
	ShutdownTimeout       time.Duration
	CallInactivityTimeout time.Duration
	WebhookDeadline       time.Duration
	MetricsNamespace      string
	PublicBaseURL         string
	APIToken              string

	LogLevel  string
	LogFormat string

	MaxHistory       int
	MaxSpokenWords   int
	MaxSilentPrompts int
	Language         string
	PlatformVoice    string
	ListenTimeout    int
	ListenHints      []string
	RenderAudio      bool
	DefaultRole      string

	BasePrompt       string
	OpeningDirective string
	OpeningFallback  string
	RepeatFallback   string
	GenericGreeting  string
	FollowUpPrompt   string
	SilenceGoodbye   string
	DeclineMessage   string

	LLMProvider      string
	LLMTemperature   float64
	LLMMaxTokens     int
	LLMTimeout       time.Duration
	PresencePenalty  float64
	FrequencyPenalty float64
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string

	VoiceProvider             string
	TTSTimeout                time.Duration
	ElevenLabsAPIKey          string
	ElevenLabsWSBaseURL       string
	ElevenLabsTTSVoice        string
	ElevenLabsTTSModel        string
	ElevenLabsTTSOutputFormat string
	VoiceStability            float64
	VoiceSimilarity           float64
	VoiceStyle                float64
	VoiceSpeakerBoost         bool

	AudioStore  string
	AudioDir    string
	AudioTTL    time.Duration
	DatabaseURL string

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioAPIBaseURL        string
	TwilioValidateSignature bool
}

const defaultBasePrompt = `Eres un agente telefónico amable y profesional que realiza llamadas salientes.
Hablas español natural de Colombia, con frases cortas y claras.
Nunca uses listas, emojis, enlaces ni formato.
Si la persona no te entiende, repite la idea con otras palabras.
Si la persona pide terminar la llamada, despídete con cortesía.`

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voicecaller"),
		PublicBaseURL:    strings.TrimRight(stringsTrimSpace("APP_PUBLIC_BASE_URL"), "/"),
		APIToken:         stringsTrimSpace("APP_API_TOKEN"),
		LogLevel:         envOrDefault("APP_LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("APP_LOG_FORMAT", "json"),

		// 24 turns keeps the last 12 caller/agent exchanges.
		MaxHistory:       24,
		MaxSpokenWords:   15,
		MaxSilentPrompts: 3,
		Language:         envOrDefault("CALL_LANGUAGE", "es-CO"),
		PlatformVoice:    envOrDefault("CALL_PLATFORM_VOICE", "Polly.Mia"),
		ListenTimeout:    3,
		ListenHints:      []string{"sí", "no", "claro", "bueno", "listo", "hola", "aló"},
		RenderAudio:      false,
		DefaultRole:      stringsTrimSpace("CALL_DEFAULT_INSTRUCTION"),

		BasePrompt:       envOrDefault("PROMPT_BASE_TEMPLATE", defaultBasePrompt),
		OpeningDirective: envOrDefault("PROMPT_OPENING_DIRECTIVE", "Tú llamas. Hablas PRIMERO. Saludo + origen + motivo. 10-20 palabras. Pide confirmación de que te escuchan."),
		OpeningFallback:  envOrDefault("PROMPT_OPENING_FALLBACK", "Cordial saludo. ¿Me escuchas bien?"),
		RepeatFallback:   envOrDefault("PROMPT_REPEAT_FALLBACK", "¿Qué decías? No te oí bien."),
		GenericGreeting:  envOrDefault("PROMPT_GENERIC_GREETING", "Hola, te llamamos de servicio al cliente. ¿Me escuchas?"),
		FollowUpPrompt:   envOrDefault("PROMPT_FOLLOWUP", "¿Sigues ahí? ¿Me puedes repetir, por favor?"),
		SilenceGoodbye:   envOrDefault("PROMPT_SILENCE_GOODBYE", "No recibimos tu respuesta. Hasta luego."),
		DeclineMessage:   envOrDefault("PROMPT_DECLINE", "Lo siento, no podemos atender esta llamada. Hasta luego."),

		LLMProvider:      envOrDefault("LLM_PROVIDER", "auto"),
		LLMTemperature:   0.7,
		LLMMaxTokens:     60,
		LLMTimeout:       4 * time.Second,
		PresencePenalty:  0.7,
		FrequencyPenalty: 0.8,
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),

		VoiceProvider:       envOrDefault("VOICE_PROVIDER", "auto"),
		TTSTimeout:          3 * time.Second,
		ElevenLabsAPIKey:    stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsTTSVoice:  stringsTrimSpace("ELEVENLABS_TTS_VOICE_ID"),
		ElevenLabsTTSModel:  envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		// Telephony playback fetches the artifact over HTTP; mp3 keeps it small.
		ElevenLabsTTSOutputFormat: envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "mp3_44100_128"),
		VoiceStability:            0.5,
		VoiceSimilarity:           0.75,
		VoiceStyle:                0,
		VoiceSpeakerBoost:         true,

		AudioStore:  envOrDefault("AUDIO_STORE", "fs"),
		AudioDir:    envOrDefault("AUDIO_DIR", "audio_cache"),
		AudioTTL:    time.Hour,
		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		TwilioAccountSID: stringsTrimSpace("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  stringsTrimSpace("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: stringsTrimSpace("TWILIO_FROM_NUMBER"),
		TwilioAPIBaseURL: envOrDefault("TWILIO_API_BASE_URL", "https://api.twilio.com/2010-04-01"),

		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 10 * time.Minute,
		// Twilio abandons a webhook after 15s.
		WebhookDeadline: 10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WebhookDeadline, err = durationFromEnv("APP_WEBHOOK_DEADLINE", cfg.WebhookDeadline)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxHistory, err = intFromEnv("CALL_MAX_HISTORY", cfg.MaxHistory)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSpokenWords, err = intFromEnv("CALL_MAX_SPOKEN_WORDS", cfg.MaxSpokenWords)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSilentPrompts, err = intFromEnv("CALL_MAX_SILENT_PROMPTS", cfg.MaxSilentPrompts)
	if err != nil {
		return Config{}, err
	}
	cfg.ListenTimeout, err = intFromEnv("CALL_LISTEN_TIMEOUT", cfg.ListenTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ListenHints = listFromEnv("CALL_LISTEN_HINTS", cfg.ListenHints)
	cfg.RenderAudio, err = boolFromEnv("CALL_RENDER_AUDIO", cfg.RenderAudio)
	if err != nil {
		return Config{}, err
	}

	cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PresencePenalty, err = floatFromEnv("LLM_PRESENCE_PENALTY", cfg.PresencePenalty)
	if err != nil {
		return Config{}, err
	}
	cfg.FrequencyPenalty, err = floatFromEnv("LLM_FREQUENCY_PENALTY", cfg.FrequencyPenalty)
	if err != nil {
		return Config{}, err
	}

	cfg.TTSTimeout, err = durationFromEnv("TTS_TIMEOUT", cfg.TTSTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceStability, err = floatFromEnv("VOICE_STABILITY", cfg.VoiceStability)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceSimilarity, err = floatFromEnv("VOICE_SIMILARITY", cfg.VoiceSimilarity)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceStyle, err = floatFromEnv("VOICE_STYLE", cfg.VoiceStyle)
	if err != nil {
		return Config{}, err
	}
	cfg.VoiceSpeakerBoost, err = boolFromEnv("VOICE_SPEAKER_BOOST", cfg.VoiceSpeakerBoost)
	if err != nil {
		return Config{}, err
	}

	cfg.AudioTTL, err = durationFromEnv("AUDIO_TTL", cfg.AudioTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.TwilioValidateSignature, err = boolFromEnv("TWILIO_VALIDATE_SIGNATURE", cfg.TwilioAuthToken != "")
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.CallInactivityTimeout < 30*time.Second {
		return fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 30s")
	}
	if c.WebhookDeadline <= 0 {
		return fmt.Errorf("APP_WEBHOOK_DEADLINE must be positive")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.TTSTimeout <= 0 {
		return fmt.Errorf("TTS_TIMEOUT must be positive")
	}
	// A caller turn may spend both budgets back to back.
	if c.LLMTimeout+c.TTSTimeout >= c.WebhookDeadline {
		return fmt.Errorf("LLM_TIMEOUT + TTS_TIMEOUT must be below APP_WEBHOOK_DEADLINE (%s)", c.WebhookDeadline)
	}
	if c.MaxHistory < 2 || c.MaxHistory%2 != 0 {
		return fmt.Errorf("CALL_MAX_HISTORY must be an even number >= 2")
	}
	if c.MaxSpokenWords <= 0 {
		return fmt.Errorf("CALL_MAX_SPOKEN_WORDS must be positive")
	}
	if c.MaxSilentPrompts <= 0 {
		return fmt.Errorf("CALL_MAX_SILENT_PROMPTS must be positive")
	}
	if c.ListenTimeout <= 0 {
		return fmt.Errorf("CALL_LISTEN_TIMEOUT must be positive")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be within [0, 2]")
	}
	switch c.LLMProvider {
	case "auto", "openai", "gemini", "mock":
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLMProvider)
	}
	switch c.VoiceProvider {
	case "auto", "elevenlabs", "mock", "none":
	default:
		return fmt.Errorf("VOICE_PROVIDER %q is not supported", c.VoiceProvider)
	}
	switch c.AudioStore {
	case "fs":
		if strings.TrimSpace(c.AudioDir) == "" {
			return fmt.Errorf("AUDIO_DIR is required when AUDIO_STORE=fs")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when AUDIO_STORE=postgres")
		}
	default:
		return fmt.Errorf("AUDIO_STORE %q is not supported", c.AudioStore)
	}
	if c.AudioTTL < time.Minute {
		return fmt.Errorf("AUDIO_TTL must be at least 1m")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("APP_LOG_FORMAT %q is not supported", c.LogFormat)
	}
	if c.TwilioValidateSignature && c.TwilioAuthToken == "" {
		return fmt.Errorf("TWILIO_VALIDATE_SIGNATURE requires TWILIO_AUTH_TOKEN")
	}
	return nil
}

// TwilioConfigured reports whether outbound dialing credentials are present.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}

// listFromEnv splits a comma separated value, dropping empty items.
func listFromEnv(key string, fallback []string) []string {
	v := stringsTrimSpace(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
