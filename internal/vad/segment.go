package vad

// segmentBuffer accumulates the raw frames of the current speech segment
// under a hard byte ceiling. The cap bounds memory against a caller sending
// sustained loud noise: frames that would exceed it are dropped, not
// appended, and the drop is the only observable effect.
type segmentBuffer struct {
	chunks [][]byte
	size   int
	max    int
}

func newSegmentBuffer(max int) *segmentBuffer {
	return &segmentBuffer{max: max}
}

// append adds a frame to the segment. It returns false, leaving the buffer
// untouched, when appending would push the accumulated size past the cap.
func (b *segmentBuffer) append(frame []byte) bool {
	if b.size+len(frame) > b.max {
		return false
	}
	chunk := make([]byte, len(frame))
	copy(chunk, frame)
	b.chunks = append(b.chunks, chunk)
	b.size += len(frame)
	return true
}

// bytes concatenates the accumulated frames into a single buffer.
func (b *segmentBuffer) bytes() []byte {
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

func (b *segmentBuffer) reset() {
	b.chunks = nil
	b.size = 0
}

func (b *segmentBuffer) len() int {
	return b.size
}
