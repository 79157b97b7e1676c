package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := EncodeWAVPCM16LE(pcm, 8000)

	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("len(wav) = %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids in %q", wav[:44])
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 8000 {
		t.Fatalf("sample rate = %d, want 8000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:]); got != 16000 {
		t.Fatalf("byte rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != 4 {
		t.Fatalf("data size = %d, want 4", got)
	}
	if string(wav[44:]) != string(pcm) {
		t.Fatalf("payload not copied")
	}
}
