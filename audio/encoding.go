package audio

import (
	"fmt"
	"time"
)

const (
	// FrameDuration is the length of every encoded Opus frame
	FrameDuration = 20 * time.Millisecond
	// MaxPacketSize bounds a single encoded packet
	MaxPacketSize = 4000

	MinBitrate = 6000
	MaxBitrate = 510000
)

// EncodeOptions holds configuration for Opus encoding
type EncodeOptions struct {
	Bitrate    int  // target bitrate in bits per second
	Complexity int  // 0 (fastest) to 10 (best quality)
	VBR        bool // variable bitrate
}

// DefaultEncodeOptions returns defaults suited to music
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Bitrate:    128000,
		Complexity: 10,
		VBR:        true,
	}
}

// Validate checks the options against the ranges libopus accepts
func (o EncodeOptions) Validate() error {
	if o.Bitrate < MinBitrate || o.Bitrate > MaxBitrate {
		return fmt.Errorf("bitrate %d out of range %d-%d", o.Bitrate, MinBitrate, MaxBitrate)
	}
	if o.Complexity < 0 || o.Complexity > 10 {
		return fmt.Errorf("complexity %d out of range 0-10", o.Complexity)
	}
	return nil
}

// FrameSize is the number of samples per channel in one frame at rate
func FrameSize(rate int) int {
	return rate * int(FrameDuration/time.Millisecond) / 1000
}

// GranuleSamples is the length of one frame in 48 kHz granule units
func GranuleSamples() int {
	return FrameSize(48000)
}

// FrameEncoder turns one frame of interleaved PCM into an Opus packet. pcm
// always holds exactly FrameSize(rate)*channels samples.
type FrameEncoder interface {
	Encode(pcm []float32, packet []byte) (int, error)
}

// EncoderFactory creates a FrameEncoder for the given stream parameters
type EncoderFactory func(sampleRate, channels int, opts EncodeOptions) (FrameEncoder, error)
