package telco

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/repositories"
)

const requestTimeout = 10 * time.Second

// Client drives the telephony provider's call-control REST API. It implements
// the CallControl interface the orchestrator answers and hangs up through.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure Client implements the CallControl interface
var _ repositories.CallControl = (*Client)(nil)

// NewClient creates a call-control client for the provider at baseURL.
func NewClient(baseURL, apiKey string, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}, nil
}

// Answer instructs the provider to answer the ringing call.
func (c *Client) Answer(ctx context.Context, callID string) error {
	return c.post(ctx, callID, "answer")
}

// Hangup instructs the provider to terminate the call.
func (c *Client) Hangup(ctx context.Context, callID string) error {
	return c.post(ctx, callID, "hangup")
}

func (c *Client) post(ctx context.Context, callID, action string) error {
	if callID == "" {
		return fmt.Errorf("call id is required")
	}

	body, err := json.Marshal(map[string]string{"call_id": callID})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	url := fmt.Sprintf("%s/calls/%s/%s", c.baseURL, callID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s call %s: %w", action, callID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider returned %d for %s on call %s: %s",
			resp.StatusCode, action, callID, string(errorBody))
	}

	c.logger.Info("call control action completed",
		zap.String("call_id", callID),
		zap.String("action", action))

	return nil
}
