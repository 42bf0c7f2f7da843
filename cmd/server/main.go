package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/adapters/calllog"
	"github.com/voicelinehq/voiceline/adapters/llm"
	"github.com/voicelinehq/voiceline/adapters/stt"
	"github.com/voicelinehq/voiceline/adapters/telco"
	"github.com/voicelinehq/voiceline/adapters/tts"
	"github.com/voicelinehq/voiceline/domain/repositories"
	"github.com/voicelinehq/voiceline/internal/api"
	"github.com/voicelinehq/voiceline/internal/auth"
	"github.com/voicelinehq/voiceline/internal/call"
	"github.com/voicelinehq/voiceline/internal/config"
	"github.com/voicelinehq/voiceline/internal/media"
	"github.com/voicelinehq/voiceline/internal/metrics"
	"github.com/voicelinehq/voiceline/internal/ratelimit"
	"github.com/voicelinehq/voiceline/internal/vad"
)

func main() {
	// Load .env file if present (development convenience)
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	auth.SetSecret([]byte(jwtSecret))

	streamSecret := os.Getenv("STREAM_SECRET_KEY")
	if streamSecret == "" {
		logger.Fatal("STREAM_SECRET_KEY environment variable is required")
	}

	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	// External collaborators
	transcriber, err := stt.NewGoogleTranscriber(ctx, cfg.STT.MaxUploadBytes, logger)
	if err != nil {
		logger.Fatal("failed to create transcriber", zap.Error(err))
	}
	defer transcriber.Close()

	responder, err := llm.NewGeminiResponder(ctx, llm.GeminiConfig{
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create responder", zap.Error(err))
	}

	synthesizer, err := tts.NewElevenLabsSynthesizer(tts.NewElevenLabsConfigFromEnv(), logger)
	if err != nil {
		logger.Fatal("failed to create synthesizer", zap.Error(err))
	}

	callControl, err := telco.NewClient(cfg.Telephony.ProviderBaseURL, os.Getenv("TELCO_API_KEY"), logger)
	if err != nil {
		logger.Fatal("failed to create call control client", zap.Error(err))
	}

	// Transcript archiving is optional: without a Mongo URI the service runs
	// with archiving disabled.
	var archive repositories.CallArchive
	if os.Getenv("MONGODB_URI") != "" {
		mongoArchive, err := calllog.NewMongoCallArchive(logger)
		if err != nil {
			logger.Fatal("failed to create call archive", zap.Error(err))
		}
		defer mongoArchive.Close(ctx)
		archive = mongoArchive
	} else {
		logger.Info("MONGODB_URI not set, call archiving disabled")
	}

	// The hub and the orchestrator reference each other, so the hub's handler
	// is bound after the orchestrator exists.
	hub := media.NewHub(nil, logger)
	orch := call.NewOrchestrator(orchestratorConfig(cfg), call.Deps{
		Transcriber: transcriber,
		Responder:   responder,
		Synthesizer: synthesizer,
		CallControl: callControl,
		Sink:        hub,
		Archive:     archive,
	}, m, logger)
	hub.SetHandler(orch)

	orch.Start()
	defer orch.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, orch, streamSecret, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("voiceline server started",
		zap.String("addr", addr),
		zap.Int("max_active_calls", cfg.Telephony.MaxActiveCalls))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// loadConfig reads the YAML config named by CONFIG_PATH, falling back to the
// built-in defaults when unset.
func loadConfig(logger *zap.Logger) (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		logger.Info("CONFIG_PATH not set, using default configuration")
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	logger.Info("loading configuration", zap.String("path", path))
	return config.Load(path)
}

// orchestratorConfig maps the file configuration onto the orchestrator's
// tuning parameters.
func orchestratorConfig(cfg *config.Config) call.Config {
	return call.Config{
		SystemPrompt:        cfg.LLM.SystemPrompt,
		FallbackPhrase:      cfg.Telephony.FallbackPhrase,
		Allowlist:           cfg.Telephony.AllowedNumbers,
		MaxDailyCalls:       cfg.Telephony.MaxDailyCalls,
		MaxActiveCalls:      cfg.Telephony.MaxActiveCalls,
		SessionIdleTimeout:  cfg.Session.IdleTimeout(),
		SweepInterval:       cfg.Session.SweepInterval(),
		TurnTimeout:         cfg.LLM.Timeout(),
		AnswerTimeout:       cfg.Session.AnswerTimeout(),
		TelephonySampleRate: cfg.Telephony.SampleRate,
		Language:            cfg.STT.Language,
		Voice: repositories.VoiceConfig{
			Voice:      cfg.TTS.VoiceID,
			Language:   cfg.TTS.Language,
			SampleRate: cfg.TTS.SampleRate,
		},
		VAD: vad.Config{
			EnergyThreshold:   cfg.VAD.EnergyThreshold,
			SilenceDuration:   cfg.VAD.SilenceDuration(),
			MinSpeechDuration: cfg.VAD.MinSpeechDuration(),
			SampleRate:        cfg.Telephony.SampleRate,
			MaxSegmentBytes:   cfg.VAD.MaxSegmentBytes,
		},
		Limits: ratelimit.Limits{
			Transcription: cfg.RateLimit.TranscriptionPerMinute,
			Synthesis:     cfg.RateLimit.SynthesisPerMinute,
		},
	}
}
