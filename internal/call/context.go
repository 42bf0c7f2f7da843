package call

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicelinehq/voiceline/internal/vad"
)

// State is the lifecycle phase of a call.
type State int

const (
	StateRinging State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateRinging:
		return "ringing"
	case StateActive:
		return "active"
	default:
		return "ended"
	}
}

// segmentQueueDepth bounds segments waiting behind an outstanding turn's
// collaborator round-trips. Segments arrive at most once per silence
// threshold, so the queue only fills when collaborators are badly degraded.
const segmentQueueDepth = 4

// callContext is the orchestrator's per-call working state: the lifecycle
// phase, the call's own VAD instance, and its segment queue. Contexts live in
// a map keyed by the call-control id and are created and destroyed on
// lifecycle events, never reclaimed implicitly.
type callContext struct {
	id            string
	from          string
	correlationID string
	createdAt     time.Time

	mu       sync.Mutex
	state    State
	detector *vad.Detector

	// segments feeds the call's single turn worker. Enqueue and close both
	// happen under mu, so a segment can never be sent after teardown. A
	// single consumer preserves segment arrival order.
	segments chan []byte
}

func newCallContext(id, from string) *callContext {
	return &callContext{
		id:            id,
		from:          from,
		correlationID: uuid.NewString(),
		createdAt:     time.Now(),
		state:         StateRinging,
	}
}

// endLocked transitions the context to Ended and tears down its VAD and
// segment queue. Callers must hold mu.
func (cc *callContext) endLocked() {
	cc.state = StateEnded
	cc.detector = nil
	if cc.segments != nil {
		close(cc.segments)
		cc.segments = nil
	}
}
