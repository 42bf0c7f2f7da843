package api

import "time"

// CallEventRequest is the payload the telephony provider pushes for
// call-control events.
type CallEventRequest struct {
	Event  string `json:"event" validate:"required"`
	CallID string `json:"call_id" validate:"required"`
	From   string `json:"from,omitempty"`
}

// StreamAuthRequest is the payload for media-stream token issuance.
type StreamAuthRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
}

// StreamAuthResponse carries an issued media-stream token.
type StreamAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
