package call

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicelinehq/voiceline/domain/entities"
	"github.com/voicelinehq/voiceline/domain/repositories"
	"github.com/voicelinehq/voiceline/internal/audio"
	"github.com/voicelinehq/voiceline/internal/metrics"
	"github.com/voicelinehq/voiceline/internal/ratelimit"
	"github.com/voicelinehq/voiceline/internal/session"
	"github.com/voicelinehq/voiceline/internal/vad"
)

// Config holds the orchestrator's tuning parameters.
type Config struct {
	SystemPrompt   string
	FallbackPhrase string

	// Allowlist is the set of caller numbers permitted to reach the agent.
	// An empty list rejects every caller.
	Allowlist     []string
	MaxDailyCalls int

	// MaxActiveCalls caps concurrently handled calls. Calls beyond the cap
	// are rejected at initiation time.
	MaxActiveCalls int

	SessionIdleTimeout time.Duration
	SweepInterval      time.Duration
	TurnTimeout        time.Duration

	// AnswerTimeout bounds how long a call may stay ringing. Contexts that
	// never see an answered notification are reaped after this long so they
	// cannot hold a capacity slot forever.
	AnswerTimeout time.Duration

	TelephonySampleRate int
	Language            string
	Voice               repositories.VoiceConfig

	VAD    vad.Config
	Limits ratelimit.Limits
}

// DefaultConfig returns the orchestrator defaults for 8 kHz telephony.
func DefaultConfig() Config {
	return Config{
		FallbackPhrase:      "Sorry, I didn't catch that. Could you say it again?",
		MaxDailyCalls:       20,
		MaxActiveCalls:      8,
		SessionIdleTimeout:  5 * time.Minute,
		SweepInterval:       time.Minute,
		TurnTimeout:         30 * time.Second,
		AnswerTimeout:       2 * time.Minute,
		TelephonySampleRate: 8000,
		Language:            "en-US",
		Voice: repositories.VoiceConfig{
			Language:   "en-US",
			SampleRate: 16000,
		},
		VAD:    vad.DefaultConfig(),
		Limits: ratelimit.DefaultLimits(),
	}
}

// Deps are the external collaborators the orchestrator wires together.
// Archive may be nil; everything else is required.
type Deps struct {
	Transcriber repositories.Transcriber
	Responder   repositories.Responder
	Synthesizer repositories.Synthesizer
	CallControl repositories.CallControl
	Sink        repositories.MediaSink
	Archive     repositories.CallArchive
}

// Orchestrator drives the per-call voice pipeline: decode the wire codec,
// feed the VAD, and on each speech segment run the
// transcribe → respond → synthesize → re-encode round trip. It exclusively
// owns the session store and the rate limiter.
type Orchestrator struct {
	cfg     Config
	deps    Deps
	metrics *metrics.Metrics
	logger  *zap.Logger

	sessions *session.Store
	limiter  *ratelimit.Limiter

	mu    sync.RWMutex
	calls map[string]*callContext

	stop     chan struct{}
	stopOnce sync.Once
}

// NewOrchestrator creates an orchestrator with no active calls.
func NewOrchestrator(cfg Config, deps Deps, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		deps:     deps,
		metrics:  m,
		logger:   logger,
		sessions: session.NewStore(logger),
		limiter:  ratelimit.NewLimiter(cfg.Limits, logger),
		calls:    make(map[string]*callContext),
		stop:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (o *Orchestrator) Start() {
	go o.sweepLoop()
	o.logger.Info("call orchestrator started",
		zap.Int("max_active_calls", o.cfg.MaxActiveCalls))
}

// Stop halts the background sweep loop.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// HandleCallInitiated runs the security checks for an incoming call and
// answers it when they pass. Violations reject the call with a hangup; they
// are logged and never escalate to full processing.
func (o *Orchestrator) HandleCallInitiated(ctx context.Context, callID, from string) {
	logger := o.logger.With(zap.String("call_id", callID), zap.String("from", from))

	if !session.IsAllowed(from, o.cfg.Allowlist) {
		logger.Warn("rejecting call: caller not in allowlist")
		o.metrics.CallsRejected.WithLabelValues("not_allowed").Inc()
		o.hangup(ctx, callID)
		return
	}
	if o.sessions.ExceededDailyLimit(from, o.cfg.MaxDailyCalls) {
		logger.Warn("rejecting call: daily call limit exceeded")
		o.metrics.CallsRejected.WithLabelValues("daily_limit").Inc()
		o.hangup(ctx, callID)
		return
	}
	if o.callCount() >= o.cfg.MaxActiveCalls {
		logger.Warn("rejecting call: at capacity",
			zap.Int("max_active_calls", o.cfg.MaxActiveCalls))
		o.metrics.CallsRejected.WithLabelValues("capacity").Inc()
		o.hangup(ctx, callID)
		return
	}

	o.sessions.RecordCall(from)

	cc := newCallContext(callID, from)
	o.mu.Lock()
	o.calls[callID] = cc
	o.mu.Unlock()

	if err := o.deps.CallControl.Answer(ctx, callID); err != nil {
		logger.Error("failed to answer call", zap.Error(err))
		o.removeCall(callID)
		return
	}
	logger.Info("call answered", zap.String("correlation_id", cc.correlationID))
}

// HandleCallAnswered transitions a ringing call to active: the session, the
// call's VAD instance, and its turn worker are created here.
func (o *Orchestrator) HandleCallAnswered(callID string) {
	o.mu.RLock()
	cc := o.calls[callID]
	o.mu.RUnlock()
	if cc == nil {
		o.logger.Warn("answered notification for unknown call",
			zap.String("call_id", callID))
		return
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.state != StateRinging {
		o.logger.Warn("answered notification in unexpected state",
			zap.String("call_id", callID),
			zap.String("state", cc.state.String()))
		return
	}
	cc.state = StateActive
	cc.detector = vad.NewDetector(o.cfg.VAD, o.logger.With(zap.String("call_id", callID)))
	cc.segments = make(chan []byte, segmentQueueDepth)
	go o.turnLoop(cc, cc.segments)
	o.sessions.Create(callID, cc.from)

	o.metrics.CallsAnswered.Inc()
	o.metrics.ActiveCalls.Inc()
	o.logger.Info("call active", zap.String("call_id", callID))
}

// HandleHangup tears a call down: the session is removed, the VAD instance
// discarded, and a late-arriving frame for the id is rejected from here on.
// The ended session's transcript is archived in a detached task.
func (o *Orchestrator) HandleHangup(callID string) {
	o.mu.Lock()
	cc := o.calls[callID]
	delete(o.calls, callID)
	o.mu.Unlock()
	if cc == nil {
		return
	}

	cc.mu.Lock()
	wasActive := cc.state == StateActive
	cc.endLocked()
	cc.mu.Unlock()
	if wasActive {
		o.metrics.ActiveCalls.Dec()
	}

	sess, err := o.sessions.End(callID)
	if err != nil {
		return
	}
	o.logger.Info("call ended",
		zap.String("call_id", callID),
		zap.Duration("duration", sess.Duration()),
		zap.Int("turns", len(sess.Turns)))

	if o.deps.Archive != nil {
		go o.archive(sess)
	}
}

// HandleMediaFrame processes one inbound media frame: base64 decode, μ-law
// decode, VAD. Frames for a call not in the active state are ignored. Frames
// for one call must arrive on a single goroutine in order.
func (o *Orchestrator) HandleMediaFrame(callID, payload string) {
	o.mu.RLock()
	cc := o.calls[callID]
	o.mu.RUnlock()
	if cc == nil {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		o.logger.Warn("dropping malformed media frame",
			zap.String("call_id", callID), zap.Error(err))
		return
	}

	cc.mu.Lock()
	if cc.state != StateActive || cc.detector == nil {
		cc.mu.Unlock()
		return
	}
	result := cc.detector.Process(audio.DecodeMulaw(raw))
	segmented := result.Event == vad.EventSpeechEnd
	enqueued := false
	if segmented {
		// Enqueue under cc.mu: hangup closes the channel under the same
		// lock, so a segment can never be sent after teardown.
		select {
		case cc.segments <- result.Audio:
			enqueued = true
		default:
		}
	}
	cc.mu.Unlock()

	o.metrics.FramesReceived.Inc()
	o.sessions.MarkActivity(callID)

	if segmented {
		o.metrics.SegmentsDetected.Inc()
		o.metrics.SegmentBytes.Observe(float64(len(result.Audio)))
		if !enqueued {
			o.logger.Warn("dropping speech segment: turn queue full",
				zap.String("call_id", callID))
		}
	}
}

// ActiveCalls returns the number of registered call contexts.
func (o *Orchestrator) ActiveCalls() int {
	return o.callCount()
}

// turnLoop is the call's single turn worker: it drains the segment queue in
// arrival order, so reply audio for one call is never reordered while other
// calls proceed independently. It exits when teardown closes the queue.
func (o *Orchestrator) turnLoop(cc *callContext, segments <-chan []byte) {
	for pcm := range segments {
		o.processSegment(cc, pcm)
	}
}

// processSegment runs one conversational turn for a finished speech segment.
func (o *Orchestrator) processSegment(cc *callContext, pcm []byte) {
	logger := o.logger.With(
		zap.String("call_id", cc.id),
		zap.String("correlation_id", cc.correlationID))
	start := time.Now()

	if !o.limiter.CheckAndConsume(cc.id, ratelimit.KindTranscription) {
		logger.Warn("dropping turn: transcription rate limit exceeded")
		o.metrics.RateLimitDrops.WithLabelValues(string(ratelimit.KindTranscription)).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TurnTimeout)
	defer cancel()

	wavData := audio.WrapWAV(pcm, o.cfg.TelephonySampleRate, 1, 16)
	o.metrics.TranscriptionRequests.Inc()
	transcript, err := o.deps.Transcriber.Transcribe(ctx, wavData, repositories.AudioConfig{
		SampleRate: o.cfg.TelephonySampleRate,
		Language:   o.cfg.Language,
	})
	if err != nil {
		o.metrics.TranscriptionFailures.Inc()
		logger.Warn("transcription failed", zap.Error(err))
		o.speakFallback(ctx, cc)
		return
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		logger.Debug("empty transcript, skipping turn")
		return
	}

	o.sessions.AppendTurn(cc.id, entities.RoleCaller, transcript)
	history, err := o.sessions.History(cc.id)
	if err != nil {
		// Call hung up while the segment was in flight.
		return
	}

	reply, err := o.deps.Responder.Reply(ctx, o.cfg.SystemPrompt, history)
	if err != nil {
		o.metrics.ResponseFailures.Inc()
		logger.Warn("response generation failed", zap.Error(err))
		o.speakFallback(ctx, cc)
		return
	}
	o.sessions.AppendTurn(cc.id, entities.RoleAssistant, reply)

	o.speak(ctx, cc, reply)
	o.metrics.TurnDuration.Observe(time.Since(start).Seconds())
}

// speak synthesizes text and delivers it for playback as base64 μ-law audio.
func (o *Orchestrator) speak(ctx context.Context, cc *callContext, text string) {
	logger := o.logger.With(zap.String("call_id", cc.id))

	if !o.limiter.CheckAndConsume(cc.id, ratelimit.KindSynthesis) {
		logger.Warn("dropping reply: synthesis rate limit exceeded")
		o.metrics.RateLimitDrops.WithLabelValues(string(ratelimit.KindSynthesis)).Inc()
		return
	}

	o.metrics.SynthesisRequests.Inc()
	pcm, err := o.deps.Synthesizer.Synthesize(ctx, text, o.cfg.Voice)
	if err != nil {
		o.metrics.SynthesisFailures.Inc()
		logger.Warn("synthesis failed", zap.Error(err))
		return
	}

	if o.cfg.Voice.SampleRate == 2*o.cfg.TelephonySampleRate {
		pcm = audio.DownsampleHalf(pcm)
	}
	encoded, err := audio.EncodeMulaw(pcm)
	if err != nil {
		logger.Warn("failed to encode reply audio", zap.Error(err))
		return
	}

	payload := base64.StdEncoding.EncodeToString(encoded)
	if err := o.deps.Sink.SendAudio(cc.id, payload); err != nil {
		logger.Warn("failed to deliver reply audio", zap.Error(err))
	}
}

func (o *Orchestrator) speakFallback(ctx context.Context, cc *callContext) {
	if o.cfg.FallbackPhrase == "" {
		return
	}
	o.speak(ctx, cc, o.cfg.FallbackPhrase)
}

// archive persists an ended call's transcript. Failure is logged only.
func (o *Orchestrator) archive(sess *entities.CallSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.deps.Archive.Archive(ctx, sess); err != nil {
		o.logger.Warn("failed to archive call transcript",
			zap.String("call_id", sess.CallID), zap.Error(err))
	}
}

func (o *Orchestrator) hangup(ctx context.Context, callID string) {
	if err := o.deps.CallControl.Hangup(ctx, callID); err != nil {
		o.logger.Error("failed to hang up call",
			zap.String("call_id", callID), zap.Error(err))
	}
}

func (o *Orchestrator) callCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.calls)
}

func (o *Orchestrator) removeCall(callID string) {
	o.mu.Lock()
	delete(o.calls, callID)
	o.mu.Unlock()
}

// sweepLoop periodically reaps stale sessions and purges idle rate-limit
// windows, covering calls whose hangup notification never arrived.
func (o *Orchestrator) sweepLoop() {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			if reaped := o.sessions.SweepStale(o.cfg.SessionIdleTimeout); reaped > 0 {
				o.logger.Info("reaped stale sessions", zap.Int("count", reaped))
			}
			o.limiter.Sweep()
			o.sweepCallContexts()
		}
	}
}

// sweepCallContexts drops call contexts that can no longer progress: active
// calls whose backing session is gone (reaped as stale), so a late frame
// cannot resurrect ended state, and calls still ringing past AnswerTimeout,
// so a lost answered notification cannot hold a capacity slot forever.
func (o *Orchestrator) sweepCallContexts() {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	for id, cc := range o.calls {
		cc.mu.Lock()
		state := cc.state
		cc.mu.Unlock()

		switch state {
		case StateRinging:
			if now.Sub(cc.createdAt) < o.cfg.AnswerTimeout {
				continue
			}
			cc.mu.Lock()
			// Re-check: the call may have been answered since the peek.
			if cc.state != StateRinging {
				cc.mu.Unlock()
				continue
			}
			cc.endLocked()
			cc.mu.Unlock()
			delete(o.calls, id)
			o.logger.Warn("removed call stuck ringing",
				zap.String("call_id", id),
				zap.Duration("age", now.Sub(cc.createdAt)))
		case StateActive:
			if _, err := o.sessions.Get(id); err != nil {
				cc.mu.Lock()
				cc.endLocked()
				cc.mu.Unlock()
				delete(o.calls, id)
				o.metrics.ActiveCalls.Dec()
				o.logger.Info("removed orphaned call context", zap.String("call_id", id))
			}
		}
	}
}
