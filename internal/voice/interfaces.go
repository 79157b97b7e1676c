// Package voice renders utterances to audio through a speech provider.
package voice

import "context"

// Settings tune the rendered voice.
type Settings struct {
	Stability       float64
	SimilarityBoost float64
	Style           float64
	SpeakerBoost    bool
}

// Config selects the voice used for one rendering.
type Config struct {
	VoiceID  string
	ModelID  string
	Settings Settings
}

// Audio is a complete rendered utterance. Format is the provider output
// format, e.g. "mp3_44100_128" or "pcm_16000".
type Audio struct {
	Data   []byte
	Format string
}

// Synthesizer turns text into audio. Implementations honor ctx for
// cancellation and deadlines.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, cfg Config) (Audio, error)
}
