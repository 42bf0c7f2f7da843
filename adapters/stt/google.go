package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/repositories"
)

// GoogleTranscriber implements Transcriber using Google Cloud Speech-to-Text.
// Segments are short utterances, so the synchronous Recognize API is enough;
// no streaming session is held across segments.
type GoogleTranscriber struct {
	client         *speech.Client
	logger         *zap.Logger
	maxUploadBytes int
}

// Ensure GoogleTranscriber implements the Transcriber interface
var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber backed by Google Cloud Speech.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleTranscriber(ctx context.Context, maxUploadBytes int, logger *zap.Logger) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}

	return &GoogleTranscriber{
		client:         client,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Transcribe converts one WAV-framed speech segment to text. It returns the
// best alternative of the final result, or an error when the service fails or
// hears no speech.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, wavData []byte, config repositories.AudioConfig) (string, error) {
	if len(wavData) == 0 {
		return "", fmt.Errorf("no audio data to transcribe")
	}
	if len(wavData) > g.maxUploadBytes {
		return "", fmt.Errorf("audio segment of %d bytes exceeds upload limit of %d", len(wavData), g.maxUploadBytes)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(config.SampleRate),
			LanguageCode:    config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wavData},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize audio: %w", err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript += result.Alternatives[0].Transcript
		}
	}
	if transcript == "" {
		return "", fmt.Errorf("no speech detected in audio")
	}

	g.logger.Debug("transcribed speech segment",
		zap.Int("audio_bytes", len(wavData)),
		zap.Int("transcript_length", len(transcript)))

	return transcript, nil
}

// Close releases the underlying speech client.
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}
