package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration. Secrets (API keys, the JWT
// secret, the Mongo URI) come from the environment, never from the file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telephony TelephonyConfig `yaml:"telephony"`
	VAD       VADConfig       `yaml:"vad"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	STT       STTConfig       `yaml:"stt"`
	TTS       TTSConfig       `yaml:"tts"`
	LLM       LLMConfig       `yaml:"llm"`
	Session   SessionConfig   `yaml:"session"`
}

// ServerConfig contains the HTTP server configuration.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// TelephonyConfig contains the call-handling parameters.
type TelephonyConfig struct {
	SampleRate      int      `yaml:"sample_rate"`
	AllowedNumbers  []string `yaml:"allowed_numbers"`
	MaxDailyCalls   int      `yaml:"max_daily_calls"`
	MaxActiveCalls  int      `yaml:"max_active_calls"`
	ProviderBaseURL string   `yaml:"provider_base_url"`
	FallbackPhrase  string   `yaml:"fallback_phrase"`
}

// VADConfig contains voice activity detection parameters.
type VADConfig struct {
	EnergyThreshold float64 `yaml:"energy_threshold"`
	SilenceMs       int     `yaml:"silence_ms"`
	MinSpeechMs     int     `yaml:"min_speech_ms"`
	MaxSegmentBytes int     `yaml:"max_segment_bytes"`
}

// RateLimitConfig contains per-call per-minute caps.
type RateLimitConfig struct {
	TranscriptionPerMinute int `yaml:"transcription_per_minute"`
	SynthesisPerMinute     int `yaml:"synthesis_per_minute"`
}

// STTConfig contains speech recognition parameters.
type STTConfig struct {
	Language       string `yaml:"language"`
	MaxUploadBytes int    `yaml:"max_upload_bytes"`
}

// TTSConfig contains speech synthesis parameters.
type TTSConfig struct {
	VoiceID    string `yaml:"voice_id"`
	ModelID    string `yaml:"model_id"`
	SampleRate int    `yaml:"sample_rate"`
	Language   string `yaml:"language"`
}

// LLMConfig contains response-generation parameters.
type LLMConfig struct {
	Model          string `yaml:"model"`
	SystemPrompt   string `yaml:"system_prompt"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SessionConfig contains session lifecycle parameters.
type SessionConfig struct {
	IdleTimeoutMs   int `yaml:"idle_timeout_ms"`
	SweepIntervalMs int `yaml:"sweep_interval_ms"`
	AnswerTimeoutMs int `yaml:"answer_timeout_ms"`
}

// Default returns the configuration defaults for 8 kHz telephony.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Address: "0.0.0.0"},
		Telephony: TelephonyConfig{
			SampleRate:     8000,
			MaxDailyCalls:  20,
			MaxActiveCalls: 8,
			FallbackPhrase: "Sorry, I didn't catch that. Could you say it again?",
		},
		VAD: VADConfig{
			EnergyThreshold: 500,
			SilenceMs:       1500,
			MinSpeechMs:     300,
			MaxSegmentBytes: 10 << 20,
		},
		RateLimit: RateLimitConfig{TranscriptionPerMinute: 30, SynthesisPerMinute: 50},
		STT:       STTConfig{Language: "en-US", MaxUploadBytes: 25 << 20},
		TTS:       TTSConfig{SampleRate: 16000, Language: "en-US"},
		LLM:       LLMConfig{Model: "gemini-2.0-flash", TimeoutSeconds: 30},
		Session:   SessionConfig{IdleTimeoutMs: 300000, SweepIntervalMs: 60000, AnswerTimeoutMs: 120000},
	}
}

// Load reads the configuration file at path, layered over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// Validate performs validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Telephony.Validate(); err != nil {
		return fmt.Errorf("telephony config: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.TTS.Validate(); err != nil {
		return fmt.Errorf("tts config: %w", err)
	}
	return nil
}

// Validate validates the server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	return nil
}

// Validate validates the telephony configuration.
func (t *TelephonyConfig) Validate() error {
	if t.SampleRate != 8000 {
		return fmt.Errorf("sample_rate must be 8000 Hz for μ-law telephony, got %d", t.SampleRate)
	}
	if t.MaxDailyCalls < 1 {
		return fmt.Errorf("max_daily_calls must be at least 1, got %d", t.MaxDailyCalls)
	}
	if t.MaxActiveCalls < 1 {
		return fmt.Errorf("max_active_calls must be at least 1, got %d", t.MaxActiveCalls)
	}
	return nil
}

// Validate validates the VAD configuration.
func (v *VADConfig) Validate() error {
	if v.EnergyThreshold <= 0 {
		return fmt.Errorf("energy_threshold must be positive, got %f", v.EnergyThreshold)
	}
	if v.SilenceMs <= 0 {
		return fmt.Errorf("silence_ms must be positive, got %d", v.SilenceMs)
	}
	if v.MinSpeechMs <= 0 {
		return fmt.Errorf("min_speech_ms must be positive, got %d", v.MinSpeechMs)
	}
	if v.MaxSegmentBytes < 1024 {
		return fmt.Errorf("max_segment_bytes must be at least 1024, got %d", v.MaxSegmentBytes)
	}
	return nil
}

// Validate validates the rate-limit configuration.
func (r *RateLimitConfig) Validate() error {
	if r.TranscriptionPerMinute < 1 {
		return fmt.Errorf("transcription_per_minute must be at least 1, got %d", r.TranscriptionPerMinute)
	}
	if r.SynthesisPerMinute < 1 {
		return fmt.Errorf("synthesis_per_minute must be at least 1, got %d", r.SynthesisPerMinute)
	}
	return nil
}

// Validate validates the TTS configuration. Synthesis output is played back
// over 8 kHz telephony, so the sample rate must be 8000 or 16000: anything
// else cannot be resampled by the 2:1 decimator.
func (t *TTSConfig) Validate() error {
	if t.SampleRate != 8000 && t.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", t.SampleRate)
	}
	return nil
}

// Validate validates the session configuration.
func (s *SessionConfig) Validate() error {
	if s.IdleTimeoutMs < 1000 {
		return fmt.Errorf("idle_timeout_ms must be at least 1000, got %d", s.IdleTimeoutMs)
	}
	if s.SweepIntervalMs < 1000 {
		return fmt.Errorf("sweep_interval_ms must be at least 1000, got %d", s.SweepIntervalMs)
	}
	if s.AnswerTimeoutMs < 1000 {
		return fmt.Errorf("answer_timeout_ms must be at least 1000, got %d", s.AnswerTimeoutMs)
	}
	return nil
}

// IdleTimeout returns the session idle timeout as a time.Duration.
func (s *SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMs) * time.Millisecond
}

// SweepInterval returns the sweep interval as a time.Duration.
func (s *SessionConfig) SweepInterval() time.Duration {
	return time.Duration(s.SweepIntervalMs) * time.Millisecond
}

// AnswerTimeout returns the ringing timeout as a time.Duration.
func (s *SessionConfig) AnswerTimeout() time.Duration {
	return time.Duration(s.AnswerTimeoutMs) * time.Millisecond
}

// SilenceDuration returns the VAD silence threshold as a time.Duration.
func (v *VADConfig) SilenceDuration() time.Duration {
	return time.Duration(v.SilenceMs) * time.Millisecond
}

// MinSpeechDuration returns the VAD minimum speech span as a time.Duration.
func (v *VADConfig) MinSpeechDuration() time.Duration {
	return time.Duration(v.MinSpeechMs) * time.Millisecond
}

// Timeout returns the LLM request timeout as a time.Duration.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}
