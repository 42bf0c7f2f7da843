package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/repositories"
)

func TestValidateElevenLabsConfig(t *testing.T) {
	valid := ElevenLabsConfig{APIKey: "key"}
	if err := ValidateElevenLabsConfig(valid); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	missing := ElevenLabsConfig{}
	if err := ValidateElevenLabsConfig(missing); err == nil {
		t.Error("Expected error for missing API key")
	}

	badStability := ElevenLabsConfig{APIKey: "key", Stability: 1.5}
	if err := ValidateElevenLabsConfig(badStability); err == nil {
		t.Error("Expected error for out-of-range stability")
	}

	badClarity := ElevenLabsConfig{APIKey: "key", Clarity: -0.1}
	if err := ValidateElevenLabsConfig(badClarity); err == nil {
		t.Error("Expected error for out-of-range clarity")
	}
}

func TestSynthesizeRequestShape(t *testing.T) {
	audio := []byte{0x01, 0x02, 0x03, 0x04}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/text-to-speech/voice-42") {
			t.Errorf("Expected voice id in path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("Expected pcm_16000 output format, got %s", got)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("Expected API key header, got %s", got)
		}
		w.Write(audio)
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-key",
		APIBaseURL: server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := synth.Synthesize(context.Background(), "hello caller", repositories.VoiceConfig{
		Voice:      "voice-42",
		Language:   "en-US",
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != len(audio) {
		t.Errorf("Expected %d audio bytes, got %d", len(audio), len(got))
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "key"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := synth.Synthesize(context.Background(), "   ", repositories.VoiceConfig{SampleRate: 16000}); err == nil {
		t.Error("Expected error for empty text")
	}
}

func TestSynthesizeSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-key",
		APIBaseURL: server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := synth.Synthesize(context.Background(), "hello", repositories.VoiceConfig{SampleRate: 16000}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestLanguageCode(t *testing.T) {
	if got := languageCode("en-US"); got != "en" {
		t.Errorf("Expected en, got %s", got)
	}
	if got := languageCode("id"); got != "id" {
		t.Errorf("Expected id, got %s", got)
	}
	if got := languageCode(""); got != "" {
		t.Errorf("Expected empty, got %s", got)
	}
}
