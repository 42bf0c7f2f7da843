package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the voice pipeline.
type Metrics struct {
	FramesReceived   prometheus.Counter
	SegmentsDetected prometheus.Counter
	SegmentBytes     prometheus.Histogram

	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	SynthesisRequests     prometheus.Counter
	SynthesisFailures     prometheus.Counter
	ResponseFailures      prometheus.Counter

	RateLimitDrops *prometheus.CounterVec
	CallsRejected  *prometheus.CounterVec

	ActiveCalls   prometheus.Gauge
	CallsAnswered prometheus.Counter
	TurnDuration  prometheus.Histogram
}

// New creates and registers all pipeline metrics on the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_media_frames_received_total",
			Help: "Total number of inbound media frames processed",
		}),
		SegmentsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_speech_segments_total",
			Help: "Total number of speech segments emitted by the VAD",
		}),
		SegmentBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceline_speech_segment_bytes",
			Help:    "Size in bytes of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		SynthesisRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_synthesis_requests_total",
			Help: "Total number of speech synthesis requests sent",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_synthesis_failures_total",
			Help: "Total number of failed speech synthesis requests",
		}),
		ResponseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_response_failures_total",
			Help: "Total number of failed response-generation requests",
		}),
		RateLimitDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceline_rate_limit_drops_total",
			Help: "Turns dropped because a per-call rate limit was hit",
		}, []string{"kind"}),
		CallsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceline_calls_rejected_total",
			Help: "Calls rejected before answering",
		}, []string{"reason"}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceline_active_calls",
			Help: "Current number of active calls",
		}),
		CallsAnswered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceline_calls_answered_total",
			Help: "Total number of calls answered",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceline_turn_duration_seconds",
			Help:    "Wall time from speech segment end to reply audio dispatch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
