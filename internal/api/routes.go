package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/internal/auth"
	"github.com/voicelinehq/voiceline/internal/call"
	"github.com/voicelinehq/voiceline/internal/media"
)

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *media.Hub, orch *call.Orchestrator, streamSecret string, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voiceline",
		})
	})

	// Prometheus metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	// Media-stream token issuance for the telephony provider
	v1.POST("/stream/auth", func(c echo.Context) error {
		return streamAuth(c, streamSecret, logger)
	})

	// Call-control event webhook (push from the provider)
	v1.POST("/calls/events", func(c echo.Context) error {
		return callEvent(c, orch, logger)
	})

	// Media stream websocket with JWT validation
	e.GET("/media", func(c echo.Context) error {
		return mediaStreamWithAuth(hub, c, logger)
	})
}

func streamAuth(c echo.Context, streamSecret string, logger *zap.Logger) error {
	var req StreamAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("failed to bind stream auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.AccountID == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Account id and secret key are required",
		})
	}

	if subtle.ConstantTimeCompare([]byte(req.SecretKey), []byte(streamSecret)) != 1 {
		logger.Warn("stream authentication failed",
			zap.String("account_id", req.AccountID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid credentials",
		})
	}

	token, err := auth.GenerateStreamToken(req.AccountID)
	if err != nil {
		logger.Error("failed to generate stream token",
			zap.String("account_id", req.AccountID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate stream token",
		})
	}

	return c.JSON(http.StatusOK, StreamAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

func callEvent(c echo.Context, orch *call.Orchestrator, logger *zap.Logger) error {
	var req CallEventRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("failed to bind call event", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.CallID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "call_id is required",
		})
	}

	switch req.Event {
	case "initiated":
		orch.HandleCallInitiated(c.Request().Context(), req.CallID, req.From)
	case "answered":
		orch.HandleCallAnswered(req.CallID)
	case "hangup":
		orch.HandleHangup(req.CallID)
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_event",
			Message: "Event must be one of initiated, answered, hangup",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

// mediaStreamWithAuth handles media websocket connections with JWT
// authentication. The call id arrives as a query parameter set by the
// provider when it opens the stream.
func mediaStreamWithAuth(hub *media.Hub, c echo.Context, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		logger.Warn("media stream rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := auth.ValidateStreamToken(token)
	if err != nil {
		logger.Warn("media stream rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}
	if claims.Role != "media" {
		logger.Warn("media stream rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only media tokens are allowed for stream connections",
		})
	}

	callID := c.QueryParam("call_id")
	if callID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_call_id",
			Message: "call_id query parameter is required",
		})
	}

	logger.Info("media stream authenticated",
		zap.String("account_id", claims.AccountID),
		zap.String("call_id", callID))

	return media.HandleWebSocket(hub, c, callID, logger)
}
