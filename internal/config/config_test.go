package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
	if cfg.Telephony.SampleRate != 8000 {
		t.Errorf("Expected telephony sample rate 8000, got %d", cfg.Telephony.SampleRate)
	}
	if cfg.VAD.EnergyThreshold != 500 {
		t.Errorf("Expected energy threshold 500, got %f", cfg.VAD.EnergyThreshold)
	}
	if cfg.RateLimit.TranscriptionPerMinute != 30 {
		t.Errorf("Expected transcription limit 30, got %d", cfg.RateLimit.TranscriptionPerMinute)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
telephony:
  allowed_numbers:
    - "+15551234567"
  max_daily_calls: 5
vad:
  silence_ms: 2000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Telephony.MaxDailyCalls != 5 {
		t.Errorf("Expected overridden daily limit 5, got %d", cfg.Telephony.MaxDailyCalls)
	}
	if len(cfg.Telephony.AllowedNumbers) != 1 {
		t.Errorf("Expected 1 allowed number, got %d", len(cfg.Telephony.AllowedNumbers))
	}
	if cfg.VAD.SilenceMs != 2000 {
		t.Errorf("Expected overridden silence 2000, got %d", cfg.VAD.SilenceMs)
	}

	// Untouched fields keep their defaults.
	if cfg.VAD.MinSpeechMs != 300 {
		t.Errorf("Expected default min speech 300, got %d", cfg.VAD.MinSpeechMs)
	}
	if cfg.Telephony.SampleRate != 8000 {
		t.Errorf("Expected default sample rate 8000, got %d", cfg.Telephony.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
telephony:
  sample_rate: 16000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for non-8000 sample rate")
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"bad sample rate", func(c *Config) { c.Telephony.SampleRate = 44100 }},
		{"zero daily calls", func(c *Config) { c.Telephony.MaxDailyCalls = 0 }},
		{"zero active calls", func(c *Config) { c.Telephony.MaxActiveCalls = 0 }},
		{"negative threshold", func(c *Config) { c.VAD.EnergyThreshold = -1 }},
		{"zero silence", func(c *Config) { c.VAD.SilenceMs = 0 }},
		{"tiny segment cap", func(c *Config) { c.VAD.MaxSegmentBytes = 100 }},
		{"zero transcription limit", func(c *Config) { c.RateLimit.TranscriptionPerMinute = 0 }},
		{"tiny idle timeout", func(c *Config) { c.Session.IdleTimeoutMs = 10 }},
		{"unplayable tts rate", func(c *Config) { c.TTS.SampleRate = 24000 }},
		{"zero tts rate", func(c *Config) { c.TTS.SampleRate = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}

func TestTTSSampleRatesForTelephony(t *testing.T) {
	for _, rate := range []int{8000, 16000} {
		cfg := Default()
		cfg.TTS.SampleRate = rate
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected %d Hz to validate, got %v", rate, err)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Session.IdleTimeout(); got != 5*time.Minute {
		t.Errorf("Expected idle timeout 5m, got %s", got)
	}
	if got := cfg.Session.SweepInterval(); got != time.Minute {
		t.Errorf("Expected sweep interval 1m, got %s", got)
	}
	if got := cfg.VAD.SilenceDuration(); got != 1500*time.Millisecond {
		t.Errorf("Expected silence duration 1.5s, got %s", got)
	}
	if got := cfg.VAD.MinSpeechDuration(); got != 300*time.Millisecond {
		t.Errorf("Expected min speech 300ms, got %s", got)
	}
	if got := cfg.LLM.Timeout(); got != 30*time.Second {
		t.Errorf("Expected LLM timeout 30s, got %s", got)
	}
}
