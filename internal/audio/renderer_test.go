package audio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/voicecaller/internal/reliability"
	"github.com/antoniostano/voicecaller/internal/voice"
)

type stubSynth struct {
	audio voice.Audio
	err   error
	delay time.Duration
}

func (s stubSynth) Synthesize(ctx context.Context, _ string, _ voice.Config) (voice.Audio, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return voice.Audio{}, ctx.Err()
		}
	}
	return s.audio, s.err
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestRendererStoresUniqueReferences(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(stubSynth{audio: voice.Audio{Data: []byte("mp3"), Format: "mp3_44100_128"}}, store, nil)

	first := r.Render(context.Background(), "CA1", "n1", 1, "hola", voice.Config{}, time.Second)
	second := r.Render(context.Background(), "CA1", "n1", 2, "hola", voice.Config{}, time.Second)
	if !first.OK() || !second.OK() {
		t.Fatalf("Render() = %+v / %+v", first, second)
	}
	if first.Value.Ref == second.Value.Ref {
		t.Fatalf("references reused: %q", first.Value.Ref)
	}
	if first.Value.Ref != "CA1-n1-0001.mp3" {
		t.Fatalf("Ref = %q", first.Value.Ref)
	}
	got, err := store.Get(context.Background(), first.Value.Ref)
	if err != nil || string(got.Data) != "mp3" {
		t.Fatalf("stored artifact = %+v, %v", got, err)
	}
}

func TestRendererRecreatedCallRendersAgain(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(stubSynth{audio: voice.Audio{Data: []byte("mp3"), Format: "mp3_44100_128"}}, store, nil)

	// Same call id and seq, as after the janitor expires a call and a late
	// incoming re-creates it with a fresh session.
	a := r.Render(context.Background(), "CA1", "aaaa1111", 1, "hola", voice.Config{}, time.Second)
	b := r.Render(context.Background(), "CA1", "bbbb2222", 1, "hola", voice.Config{}, time.Second)
	if !a.OK() || !b.OK() || a.Value.Ref == b.Value.Ref {
		t.Fatalf("re-created call could not render: %+v / %+v", a, b)
	}

	dup := r.Render(context.Background(), "CA1", "aaaa1111", 1, "hola", voice.Config{}, time.Second)
	if dup.OK() || !errors.Is(dup.Err, ErrArtifactExists) {
		t.Fatalf("reused reference = %+v, want ErrArtifactExists", dup)
	}
}

func TestRendererEmptyNonceIsRandom(t *testing.T) {
	store := newTestStore(t)
	synth := stubSynth{audio: voice.Audio{Data: []byte("mp3"), Format: "mp3_44100_128"}}
	a := NewRenderer(synth, store, nil).Render(context.Background(), "CA1", "", 1, "hola", voice.Config{}, time.Second)
	b := NewRenderer(synth, store, nil).Render(context.Background(), "CA1", "", 1, "hola", voice.Config{}, time.Second)
	if !a.OK() || !b.OK() || a.Value.Ref == b.Value.Ref {
		t.Fatalf("empty nonce reused a reference: %+v / %+v", a, b)
	}
}

func TestRendererWrapsPCMAsWAV(t *testing.T) {
	store := newTestStore(t)
	r := NewRenderer(voice.NewMockSynthesizer(), store, nil)

	res := r.Render(context.Background(), "CA1", "n1", 1, "hola mundo", voice.Config{}, time.Second)
	if !res.OK() {
		t.Fatalf("Render() = %+v", res)
	}
	if res.Value.MIMEType != "audio/wav" || !strings.HasSuffix(res.Value.Ref, ".wav") {
		t.Fatalf("artifact = %q %q", res.Value.Ref, res.Value.MIMEType)
	}
	if string(res.Value.Data[:4]) != "RIFF" {
		t.Fatalf("payload is not WAV")
	}
}

func TestRendererUnavailable(t *testing.T) {
	cases := []struct {
		name   string
		synth  stubSynth
		status reliability.Status
	}{
		{name: "provider error", synth: stubSynth{err: errors.New("quota")}, status: reliability.StatusError},
		{name: "timeout", synth: stubSynth{delay: time.Second, audio: voice.Audio{Data: []byte("x"), Format: "mp3"}}, status: reliability.StatusTimeout},
		{name: "unknown format", synth: stubSynth{audio: voice.Audio{Data: []byte("x"), Format: "opus_48000"}}, status: reliability.StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRenderer(tc.synth, newTestStore(t), nil)
			res := r.Render(context.Background(), "CA1", "n1", 1, "hola", voice.Config{}, 50*time.Millisecond)
			if res.OK() || res.Status != tc.status {
				t.Fatalf("Render() status = %q, want %q", res.Status, tc.status)
			}
		})
	}
}
