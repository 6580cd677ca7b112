package transcribe

import (
	"testing"
)

func TestNewDeepgramRequiresKey(t *testing.T) {
	_, err := NewDeepgram("", "nova-2", "en")
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
}

func TestNewDeepgram(t *testing.T) {
	d, err := NewDeepgram("test-key", "nova-2", "en")
	if err != nil {
		t.Fatalf("NewDeepgram failed: %v", err)
	}
	if d.model != "nova-2" || d.language != "en" {
		t.Fatalf("unexpected client settings: model=%q language=%q", d.model, d.language)
	}
}
