package voice

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const mockSampleRate = 16000

// MockSynthesizer renders a short deterministic tone per word. It stands in
// for a real provider in local runs and tests.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (MockSynthesizer) Synthesize(ctx context.Context, text string, _ Config) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return Audio{}, fmt.Errorf("text is required")
	}
	// 120ms of a 440Hz tone per word.
	samples := words * mockSampleRate * 120 / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/mockSampleRate) * 3000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return Audio{Data: pcm, Format: fmt.Sprintf("pcm_%d", mockSampleRate)}, nil
}
