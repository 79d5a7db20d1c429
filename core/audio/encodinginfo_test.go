package audio

import "testing"

func TestDefaultEncoding(t *testing.T) {
	info := GetDefaultEncodingInfo()
	if info.IsZero() {
		t.Fatalf("expected default encoding to be set")
	}
	if got := info.BytesPerSecond(); got != 32000 {
		t.Fatalf("expected 32000 bytes per second, got %d", got)
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("mulaw")
	if err != nil || format != EncodingMulaw {
		t.Fatalf("expected mulaw, got %q (%v)", format, err)
	}
	if (EncodingInfo{SampleRate: 8000, Format: format}).SilenceValue() != 0xFF {
		t.Fatalf("unexpected mulaw silence value")
	}
	if _, err := ParseFormat("flac"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
