package entities

import (
	"errors"
	"time"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleCaller    Role = "caller"
	RoleAssistant Role = "assistant"
)

// MaxTurns caps the conversation history kept per call. Older turns are
// dropped first to bound memory and prompt size.
const MaxTurns = 40

// Turn is a single utterance in a call's conversation history.
type Turn struct {
	Role      Role      `json:"role" bson:"role"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// CallSession holds the per-call state for one live phone call. Exactly one
// session exists per call-control identifier while the call is active.
type CallSession struct {
	CallID        string    `json:"call_id" bson:"call_id"`
	CorrelationID string    `json:"correlation_id" bson:"correlation_id"`
	From          string    `json:"from" bson:"from"`
	StartedAt     time.Time `json:"started_at" bson:"started_at"`
	LastActivity  time.Time `json:"last_activity" bson:"last_activity"`
	Turns         []Turn    `json:"turns" bson:"turns"`
}

// AppendTurn records an utterance, dropping the oldest entries beyond MaxTurns.
func (s *CallSession) AppendTurn(role Role, text string) {
	now := time.Now()
	s.Turns = append(s.Turns, Turn{Role: role, Text: text, Timestamp: now})
	if len(s.Turns) > MaxTurns {
		s.Turns = s.Turns[len(s.Turns)-MaxTurns:]
	}
	s.LastActivity = now
}

// Touch updates the last-activity timestamp.
func (s *CallSession) Touch() {
	s.LastActivity = time.Now()
}

// Duration returns how long the call has been running.
func (s *CallSession) Duration() time.Duration {
	return time.Since(s.StartedAt)
}

// IdleFor reports how long the session has been without activity.
func (s *CallSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// Validate validates the session data.
func (s *CallSession) Validate() error {
	if s.CallID == "" {
		return errors.New("call_id is required")
	}
	if s.From == "" {
		return errors.New("from number is required")
	}
	return nil
}

// DailyCallLedger counts calls from a single phone number within a rolling
// 24-hour window. The window resets lazily when it has fully elapsed.
type DailyCallLedger struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// ledgerWindow is how long a ledger window lasts before it resets.
const ledgerWindow = 24 * time.Hour

// ResetIfExpired zeroes the count once 24 hours have elapsed since the
// window started. Counts never go negative.
func (l *DailyCallLedger) ResetIfExpired(now time.Time) {
	if now.Sub(l.WindowStart) >= ledgerWindow {
		l.Count = 0
		l.WindowStart = now
	}
	if l.Count < 0 {
		l.Count = 0
	}
}

// Record increments the call count for the current window.
func (l *DailyCallLedger) Record(now time.Time) {
	l.ResetIfExpired(now)
	l.Count++
}
