// Package codec binds the audio pipeline to libopus.
package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/lepinkainen/flac2opus/audio"
)

// Encoder wraps a libopus encoder configured for music
type Encoder struct {
	enc      *opus.Encoder
	channels int
	frame    int
}

// NewEncoder satisfies audio.EncoderFactory
func NewEncoder(sampleRate, channels int, opts audio.EncodeOptions) (audio.FrameEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	if err := enc.SetBitrate(opts.Bitrate); err != nil {
		return nil, fmt.Errorf("set bitrate %d: %w", opts.Bitrate, err)
	}
	if err := enc.SetComplexity(opts.Complexity); err != nil {
		return nil, fmt.Errorf("set complexity %d: %w", opts.Complexity, err)
	}
	if err := enc.SetVBR(opts.VBR); err != nil {
		return nil, fmt.Errorf("set vbr: %w", err)
	}
	return &Encoder{enc: enc, channels: channels, frame: audio.FrameSize(sampleRate)}, nil
}

// Encode encodes one 20 ms frame of interleaved samples
func (e *Encoder) Encode(pcm []float32, packet []byte) (int, error) {
	if len(pcm) != e.frame*e.channels {
		return 0, fmt.Errorf("frame has %d samples, want %d", len(pcm), e.frame*e.channels)
	}
	return e.enc.EncodeFloat32(pcm, packet)
}

// Vendor names the encoder library for the Opus comment header
func Vendor() string {
	return opus.Version()
}

// Decoder decodes packets of one stream at 48 kHz
type Decoder struct {
	dec      *opus.Decoder
	channels int
	pcm      []float32
}

// NewDecoder returns a decoder for a stream with the given channel count
func NewDecoder(channels int) (*Decoder, error) {
	dec, err := opus.NewDecoder(48000, channels)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	// 120 ms is the longest Opus packet
	return &Decoder{dec: dec, channels: channels, pcm: make([]float32, 5760*channels)}, nil
}

// Decode decodes one packet and returns the samples per channel it held
func (d *Decoder) Decode(packet []byte) (int, error) {
	return d.dec.DecodeFloat32(packet, d.pcm)
}

// Samples returns the interleaved output of the last Decode call, n
// samples per channel long
func (d *Decoder) Samples(n int) []float32 {
	return d.pcm[:n*d.channels]
}
