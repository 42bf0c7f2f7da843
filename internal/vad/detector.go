package vad

import (
	"encoding/binary"
	"math"
	"time"

	"go.uber.org/zap"
)

// Event is a speech-boundary transition emitted for a processed frame.
type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeaking
	EventSpeechEnd
)

func (e Event) String() string {
	switch e {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeaking:
		return "speaking"
	case EventSpeechEnd:
		return "speech_end"
	default:
		return "none"
	}
}

// Config holds the detector's tuning parameters.
type Config struct {
	// EnergyThreshold is the RMS level above which a frame counts as speech.
	EnergyThreshold float64
	// SilenceDuration is how long the line must stay quiet before a segment ends.
	SilenceDuration time.Duration
	// MinSpeechDuration discards segments shorter than this as line noise.
	MinSpeechDuration time.Duration
	// SampleRate of the incoming PCM16 frames.
	SampleRate int
	// MaxSegmentBytes caps the accumulated segment buffer.
	MaxSegmentBytes int
}

// DefaultConfig returns the detector defaults for 8 kHz telephony audio.
func DefaultConfig() Config {
	return Config{
		EnergyThreshold:   500,
		SilenceDuration:   1500 * time.Millisecond,
		MinSpeechDuration: 300 * time.Millisecond,
		SampleRate:        8000,
		MaxSegmentBytes:   10 << 20,
	}
}

// Result is returned for every processed frame: the boundary event (if any),
// the frame's RMS energy for diagnostics, and the concatenated segment audio,
// which is non-nil only on EventSpeechEnd.
type Result struct {
	Event  Event
	Energy float64
	Audio  []byte
}

// Detector segments a continuous PCM16 stream into speech and silence. It is
// a per-call state machine: frames must arrive in order, and a single
// goroutine must own each instance. Time is derived from sample counts, so
// behavior is deterministic regardless of wall-clock scheduling.
type Detector struct {
	cfg    Config
	logger *zap.Logger

	speaking     bool
	clock        time.Duration // stream position, advanced by each frame
	segmentStart time.Duration
	lastSpeech   time.Duration // stream position just after the last loud frame
	buf          *segmentBuffer
}

// NewDetector creates a detector in the idle state.
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 8000
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = 10 << 20
	}
	return &Detector{
		cfg:    cfg,
		logger: logger,
		buf:    newSegmentBuffer(cfg.MaxSegmentBytes),
	}
}

// Process consumes one PCM16 frame and returns the resulting event.
func (d *Detector) Process(frame []byte) Result {
	energy := rms(frame)
	loud := energy > d.cfg.EnergyThreshold

	frameDur := time.Duration(len(frame)/2) * time.Second / time.Duration(d.cfg.SampleRate)
	end := d.clock + frameDur
	defer func() { d.clock = end }()

	switch {
	case !d.speaking && loud:
		d.speaking = true
		d.segmentStart = d.clock
		d.lastSpeech = end
		d.buf.reset()
		d.appendFrame(frame)
		return Result{Event: EventSpeechStart, Energy: energy}

	case d.speaking && loud:
		d.lastSpeech = end
		d.appendFrame(frame)
		return Result{Event: EventSpeaking, Energy: energy}

	case d.speaking && !loud:
		silence := end - d.lastSpeech
		if silence < d.cfg.SilenceDuration {
			// Brief pause mid-sentence: keep accumulating.
			d.appendFrame(frame)
			return Result{Event: EventSpeaking, Energy: energy}
		}

		segmentDur := d.lastSpeech - d.segmentStart
		d.speaking = false
		if segmentDur < d.cfg.MinSpeechDuration {
			// Too short to be real speech (a cough, line noise).
			d.logger.Debug("discarding short speech segment",
				zap.Duration("duration", segmentDur))
			d.buf.reset()
			return Result{Event: EventNone, Energy: energy}
		}
		audio := d.buf.bytes()
		d.buf.reset()
		return Result{Event: EventSpeechEnd, Energy: energy, Audio: audio}

	default:
		return Result{Event: EventNone, Energy: energy}
	}
}

// Reset forces the idle state with an empty buffer. Used when a call ends.
func (d *Detector) Reset() {
	d.speaking = false
	d.clock = 0
	d.segmentStart = 0
	d.lastSpeech = 0
	d.buf.reset()
}

// BufferedBytes reports the size of the current segment accumulator.
func (d *Detector) BufferedBytes() int {
	return d.buf.len()
}

func (d *Detector) appendFrame(frame []byte) {
	if !d.buf.append(frame) {
		d.logger.Warn("segment buffer cap reached, dropping audio frame",
			zap.Int("buffered_bytes", d.buf.len()),
			zap.Int("frame_bytes", len(frame)))
	}
}

// rms computes the root-mean-square energy of a PCM16 little-endian frame.
func rms(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}
