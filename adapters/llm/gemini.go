package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/voicelinehq/voiceline/domain/entities"
	"github.com/voicelinehq/voiceline/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 256
	defaultTimeoutSeconds  = 30
	maxAttempts            = 3
)

// GeminiConfig holds configuration for the GeminiResponder.
type GeminiConfig struct {
	APIKey          string  // Required: Google AI API key
	Model           string  // Optional: model name
	Temperature     float32 // Optional: sampling temperature between 0 and 1
	MaxOutputTokens int     // Optional: reply length cap, kept small for voice
	TimeoutSeconds  int     // Optional: per-request timeout
}

// ValidateGeminiConfig validates the GeminiConfig.
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// GeminiResponder implements Responder using Google's Gemini API. The
// conversation history lives in the session store, not here, so the adapter
// is stateless and safe for concurrent calls.
type GeminiResponder struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeout         time.Duration
}

// Ensure GeminiResponder implements the Responder interface
var _ repositories.Responder = (*GeminiResponder)(nil)

// NewGeminiResponder creates a new Gemini responder instance.
func NewGeminiResponder(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiResponder, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiResponder{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// Reply generates the assistant's next turn from the system instruction and
// the ordered conversation so far. The last history entry is the caller turn
// being answered.
func (g *GeminiResponder) Reply(ctx context.Context, systemPrompt string, history []entities.Turn) (string, error) {
	contents := convertHistoryToGeminiFormat(systemPrompt, history)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var responseText string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText += part.Text
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("empty response from model")
	}

	g.logger.Info("Generated assistant reply",
		zap.Int("history_length", len(history)),
		zap.Int("response_length", len(responseText)))

	return responseText, nil
}

// convertHistoryToGeminiFormat maps conversation turns to Gemini contents.
// The system instruction leads as a user message; caller turns map to the
// user role and assistant turns to the model role.
func convertHistoryToGeminiFormat(systemPrompt string, history []entities.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)

	if systemPrompt != "" {
		contents = append(contents, genai.NewContentFromText(systemPrompt, genai.RoleUser))
	}

	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == entities.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	return contents
}
