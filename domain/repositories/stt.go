package repositories

import "context"

// Transcriber abstracts the external speech recognition service. Audio is
// handed over as a self-describing WAV container, never as raw samples.
type Transcriber interface {
	Transcribe(ctx context.Context, wavData []byte, config AudioConfig) (string, error)
}

// AudioConfig describes the audio inside the container for recognition.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Language   string `json:"language"`
}
