package repositories

import "context"

// CallControl is the narrow surface of the telephony provider's call-control
// API that this core calls back into. The provider pushes call events to us;
// we answer or hang up through this interface.
type CallControl interface {
	Answer(ctx context.Context, callID string) error
	Hangup(ctx context.Context, callID string) error
}

// MediaSink delivers outbound audio frames for playback on a call. Payloads
// are base64-encoded wire-codec (μ-law) audio, matching the inbound framing.
type MediaSink interface {
	SendAudio(callID string, payload string) error
}
