package audio

import (
	"encoding/binary"
	"fmt"
)

// G.711 μ-law constants. The clip ceiling keeps the exponent search inside
// the 8-bit window after the bias is added.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// DecodeMulaw converts 8-bit μ-law telephony audio to 16-bit linear PCM
// (little-endian). The output is exactly twice the length of the input.
func DecodeMulaw(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(decodeMulawSample(b)))
	}
	return out
}

func decodeMulawSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F

	value := ((int(mantissa) << 3) + mulawBias) << uint(exponent)
	value -= mulawBias
	if value > 32767 {
		value = 32767
	}
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// EncodeMulaw converts 16-bit linear PCM (little-endian) to 8-bit μ-law.
// The output is exactly half the length of the input, which must be even.
func EncodeMulaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm length must be even, got %d bytes", len(pcm))
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = encodeMulawSample(sample)
	}
	return out, nil
}

func encodeMulawSample(sample int16) byte {
	var sign byte
	value := int(sample)
	if value < 0 {
		value = -value
		sign = 0x80
	}
	if value > mulawClip {
		value = mulawClip
	}
	value += mulawBias

	// Find the smallest exponent whose shifted 8-bit window holds the
	// biased magnitude.
	exponent := byte(7)
	for mask := 0x4000; (value&mask) == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((value >> (uint(exponent) + 3)) & 0x0F)

	// The format stores the codeword inverted.
	return ^(sign | exponent<<4 | mantissa)
}

// DownsampleHalf decimates PCM16 audio to half its sample rate by keeping
// every other sample. No anti-alias filtering is applied; downstream energy
// detection tolerates the minor aliasing this introduces.
func DownsampleHalf(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, 0, ((samples+1)/2)*2)
	for i := 0; i < samples; i += 2 {
		out = append(out, pcm[i*2], pcm[i*2+1])
	}
	return out
}
