package repositories

import "context"

// Synthesizer abstracts the external speech-synthesis service. It returns
// raw PCM16 audio at the sample rate named in the voice config.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, error)
}

// VoiceConfig selects the synthesis voice and output format.
type VoiceConfig struct {
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
}
