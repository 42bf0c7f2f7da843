package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a rate-limited operation.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindSynthesis     Kind = "synthesis"
)

const (
	windowDuration = time.Minute
	// Windows untouched this long are purged so the map stays bounded
	// across many short calls.
	staleAfter = 5 * time.Minute
)

// Limits caps invocations per call per minute for each kind.
type Limits struct {
	Transcription int
	Synthesis     int
}

// DefaultLimits returns the per-minute defaults.
func DefaultLimits() Limits {
	return Limits{Transcription: 30, Synthesis: 50}
}

type window struct {
	count int
	start time.Time
}

// Limiter tracks independent sliding windows per call per kind. It is safe
// for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limits  Limits
	logger  *zap.Logger
	now     func() time.Time
}

// NewLimiter creates a limiter with the given per-minute caps.
func NewLimiter(limits Limits, logger *zap.Logger) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limits:  limits,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckAndConsume returns true and counts one invocation if the call is under
// its per-minute cap for the kind. At the cap it returns false without
// incrementing. Windows are created lazily and reset lazily on expiry.
func (l *Limiter) CheckAndConsume(callID string, kind Kind) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := callID + "/" + string(kind)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > windowDuration {
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.count >= l.limit(kind) {
		return false
	}
	w.count++
	return true
}

// Sweep purges windows whose start is older than five minutes and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	purged := 0
	for key, w := range l.windows {
		if now.Sub(w.start) > staleAfter {
			delete(l.windows, key)
			purged++
		}
	}
	if purged > 0 {
		l.logger.Debug("purged stale rate-limit windows", zap.Int("count", purged))
	}
	return purged
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) limit(kind Kind) int {
	switch kind {
	case KindSynthesis:
		return l.limits.Synthesis
	default:
		return l.limits.Transcription
	}
}
