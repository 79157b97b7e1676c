package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/antoniostano/voicecaller/internal/reliability"
	"github.com/gorilla/websocket"
)

type ElevenLabsConfig struct {
	APIKey         string
	WSBaseURL      string
	DefaultVoiceID string
	DefaultModelID string
	OutputFormat   string
}

// ProviderError is an error message sent by the provider on the stream.
type ProviderError struct {
	Code      string
	Detail    string
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return "elevenlabs: " + e.Detail
	}
	return fmt.Sprintf("elevenlabs %s: %s", e.Code, e.Detail)
}

var errEmptyAudio = errors.New("elevenlabs: stream finished without audio")

type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.DefaultModelID) == "" {
		cfg.DefaultModelID = "eleven_turbo_v2_5"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	return &ElevenLabsSynthesizer{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Synthesize streams text through the stream-input websocket and collects
// the audio chunks until the provider marks the stream final.
func (p *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string, cfg Config) (Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Audio{}, fmt.Errorf("text is required")
	}
	voiceID := strings.TrimSpace(cfg.VoiceID)
	if voiceID == "" {
		voiceID = p.cfg.DefaultVoiceID
	}
	if voiceID == "" {
		return Audio{}, fmt.Errorf("voice_id is required")
	}
	modelID := strings.TrimSpace(cfg.ModelID)
	if modelID == "" {
		modelID = p.cfg.DefaultModelID
	}

	u, err := url.Parse(strings.TrimRight(p.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input")
	if err != nil {
		return Audio{}, err
	}
	q := u.Query()
	q.Set("model_id", modelID)
	q.Set("output_format", p.cfg.OutputFormat)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return Audio{}, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()
	// Unblocks ReadMessage when the budget runs out.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := cfg.Settings
	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":         clampUnit(s.Stability),
				"similarity_boost":  clampUnit(s.SimilarityBoost),
				"style":             clampUnit(s.Style),
				"use_speaker_boost": s.SpeakerBoost,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return Audio{}, p.streamErr(ctx, fmt.Errorf("write tts message: %w", err))
		}
	}

	var out bytes.Buffer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && out.Len() > 0 {
				break
			}
			return Audio{}, p.streamErr(ctx, fmt.Errorf("read tts stream: %w", err))
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		if errMsg := asString(raw["error"]); errMsg != "" {
			code := asString(raw["message_type"])
			return Audio{}, &ProviderError{Code: code, Detail: errMsg, Retryable: reliability.IsTransientProviderMessage(code)}
		}
		if chunk := asString(raw["audio"]); chunk != "" {
			decoded, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return Audio{}, fmt.Errorf("decode tts audio: %w", err)
			}
			out.Write(decoded)
		}
		if asBool(raw["isFinal"]) || asBool(raw["is_final"]) {
			break
		}
	}
	if out.Len() == 0 {
		return Audio{}, errEmptyAudio
	}
	return Audio{Data: out.Bytes(), Format: p.cfg.OutputFormat}, nil
}

// streamErr prefers the context error once the budget is gone, since a
// closed connection is then only a symptom.
func (p *ElevenLabsSynthesizer) streamErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
