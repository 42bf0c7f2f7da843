package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/entities"
)

// ErrNotFound is returned when no session exists for a call id. Lookups by
// unknown identifier never create a session implicitly.
var ErrNotFound = errors.New("call session not found")

// Store owns the per-call sessions and the process-wide daily-call ledger.
// It is safe for concurrent use across call-handling goroutines.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entities.CallSession
	ledgers  map[string]*entities.DailyCallLedger
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*entities.CallSession),
		ledgers:  make(map[string]*entities.DailyCallLedger),
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a session for a newly answered call. If one already exists
// for the id it is replaced, not duplicated.
func (s *Store) Create(callID, from string) *entities.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[callID]; exists {
		s.logger.Warn("replacing existing session for call",
			zap.String("call_id", callID))
	}

	now := s.now()
	sess := &entities.CallSession{
		CallID:        callID,
		CorrelationID: uuid.NewString(),
		From:          from,
		StartedAt:     now,
		LastActivity:  now,
		Turns:         make([]entities.Turn, 0),
	}
	s.sessions[callID] = sess
	return sess
}

// Get returns the session for a call id, or ErrNotFound.
func (s *Store) Get(callID string) (*entities.CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// AppendTurn records an utterance on a call's history. Unknown ids are a no-op.
func (s *Store) AppendTurn(callID string, role entities.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return
	}
	sess.AppendTurn(role, text)
}

// MarkActivity refreshes a session's last-activity timestamp.
func (s *Store) MarkActivity(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callID]; ok {
		sess.LastActivity = s.now()
	}
}

// History returns a copy of a call's conversation turns, or ErrNotFound.
func (s *Store) History(callID string) ([]entities.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	turns := make([]entities.Turn, len(sess.Turns))
	copy(turns, sess.Turns)
	return turns, nil
}

// End removes and returns the session for a call, or ErrNotFound.
func (s *Store) End(callID string) (*entities.CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.sessions, callID)
	return sess, nil
}

// SweepStale removes sessions idle beyond maxIdle and returns how many were
// reaped. Covers calls whose hangup notification never arrived.
func (s *Store) SweepStale(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	reaped := 0
	for id, sess := range s.sessions {
		if sess.IdleFor(now) > maxIdle {
			delete(s.sessions, id)
			reaped++
			s.logger.Info("reaped stale call session",
				zap.String("call_id", id),
				zap.Duration("idle", sess.IdleFor(now)))
		}
	}
	return reaped
}

// Len returns the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RecordCall counts a call against the number's daily ledger, creating the
// ledger lazily on first call.
func (s *Store) RecordCall(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[number]
	if !ok {
		ledger = &entities.DailyCallLedger{WindowStart: s.now()}
		s.ledgers[number] = ledger
	}
	ledger.Record(s.now())
}

// ExceededDailyLimit reports whether the number has reached max calls within
// the current 24-hour window. The window resets lazily before the comparison.
func (s *Store) ExceededDailyLimit(number string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, ok := s.ledgers[number]
	if !ok {
		return false
	}
	return HasExceededDailyLimit(ledger, s.now(), max)
}

// HasExceededDailyLimit is the pure form of the daily-limit check so it can
// run before any session exists, at call-initiation time.
func HasExceededDailyLimit(ledger *entities.DailyCallLedger, now time.Time, max int) bool {
	ledger.ResetIfExpired(now)
	return ledger.Count >= max
}
