package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/entities"
	"github.com/voicelinehq/voiceline/domain/repositories"
	"github.com/voicelinehq/voiceline/internal/auth"
	"github.com/voicelinehq/voiceline/internal/call"
	"github.com/voicelinehq/voiceline/internal/media"
	"github.com/voicelinehq/voiceline/internal/metrics"
)

const testStreamSecret = "stream-secret"

type nullTranscriber struct{}

func (nullTranscriber) Transcribe(ctx context.Context, wavData []byte, config repositories.AudioConfig) (string, error) {
	return "", nil
}

type nullResponder struct{}

func (nullResponder) Reply(ctx context.Context, systemPrompt string, history []entities.Turn) (string, error) {
	return "", nil
}

type nullSynthesizer struct{}

func (nullSynthesizer) Synthesize(ctx context.Context, text string, voice repositories.VoiceConfig) ([]byte, error) {
	return nil, nil
}

type recordingControl struct {
	mu       sync.Mutex
	answered []string
	hungup   []string
}

func (r *recordingControl) Answer(ctx context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answered = append(r.answered, callID)
	return nil
}

func (r *recordingControl) Hangup(ctx context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hungup = append(r.hungup, callID)
	return nil
}

func setupTestServer(t *testing.T) (*httptest.Server, *recordingControl) {
	t.Helper()
	auth.SetSecret([]byte("jwt-test-secret"))

	logger := zap.NewNop()
	control := &recordingControl{}

	cfg := call.DefaultConfig()
	cfg.Allowlist = []string{"+15551234567"}

	hub := media.NewHub(nil, logger)
	orch := call.NewOrchestrator(cfg, call.Deps{
		Transcriber: nullTranscriber{},
		Responder:   nullResponder{},
		Synthesizer: nullSynthesizer{},
		CallControl: control,
		Sink:        hub,
	}, metrics.New(prometheus.NewRegistry()), logger)
	hub.SetHandler(orch)

	e := echo.New()
	InitRoutes(e, hub, orch, testStreamSecret, logger)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server, control
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestStreamAuthIssuesToken(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/stream/auth",
		`{"account_id":"provider-1","secret_key":"`+testStreamSecret+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body StreamAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("Expected a token in the response")
	}

	claims, err := auth.ValidateStreamToken(body.Token)
	if err != nil {
		t.Fatalf("Issued token failed validation: %v", err)
	}
	if claims.AccountID != "provider-1" {
		t.Errorf("Expected account id provider-1, got %s", claims.AccountID)
	}
}

func TestStreamAuthRejectsBadSecret(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/stream/auth",
		`{"account_id":"provider-1","secret_key":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestStreamAuthRejectsMissingFields(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/stream/auth", `{"account_id":"provider-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestCallEventDispatchesInitiated(t *testing.T) {
	server, control := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/calls/events",
		`{"event":"initiated","call_id":"call-1","from":"+15551234567"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	control.mu.Lock()
	defer control.mu.Unlock()
	if len(control.answered) != 1 || control.answered[0] != "call-1" {
		t.Errorf("Expected call-1 answered, got %v", control.answered)
	}
}

func TestCallEventRejectsUnlistedCaller(t *testing.T) {
	server, control := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/calls/events",
		`{"event":"initiated","call_id":"call-1","from":"+15550000000"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 (event accepted, call rejected), got %d", resp.StatusCode)
	}

	control.mu.Lock()
	defer control.mu.Unlock()
	if len(control.hungup) != 1 || control.hungup[0] != "call-1" {
		t.Errorf("Expected call-1 hung up, got %v", control.hungup)
	}
}

func TestCallEventRejectsUnknownEvent(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/calls/events",
		`{"event":"transferred","call_id":"call-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestCallEventRequiresCallID(t *testing.T) {
	server, _ := setupTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/calls/events", `{"event":"initiated"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestMediaEndpointRequiresToken(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/media?call_id=call-1")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestMediaEndpointRejectsInvalidToken(t *testing.T) {
	server, _ := setupTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/media?call_id=call-1", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid token, got %d", resp.StatusCode)
	}
}

func TestMediaEndpointRequiresCallID(t *testing.T) {
	server, _ := setupTestServer(t)

	token, err := auth.GenerateStreamToken("provider-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/media", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without call_id, got %d", resp.StatusCode)
	}
}
