package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// DecodeFLAC reads the whole FLAC file at path into an interleaved float
// buffer. progress, when not nil, receives the decoded fraction in [0, 1]
// after each frame if the stream header declares its length.
func DecodeFLAC(ctx context.Context, path string, progress func(float64)) (*PcmBuffer, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, newError(KindDecode, path, err)
	}
	defer stream.Close()

	info := stream.Info
	if info.SampleRate == 0 || info.NChannels == 0 || info.BitsPerSample == 0 {
		return nil, newError(KindUnsupportedFormat, path,
			fmt.Errorf("invalid stream parameters: %d Hz, %d channels, %d bits",
				info.SampleRate, info.NChannels, info.BitsPerSample))
	}
	if info.BitsPerSample > 32 {
		return nil, newError(KindUnsupportedFormat, path,
			fmt.Errorf("%d bits per sample", info.BitsPerSample))
	}

	channels := int(info.NChannels)
	scale := 1 / float32(uint64(1)<<(info.BitsPerSample-1))

	var samples []float32
	if info.NSamples > 0 {
		samples = make([]float32, 0, capacityHint(path, info.NSamples, channels, int(info.BitsPerSample)))
	}

	var decoded uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newError(KindDecode, path, err)
		}
		if len(frame.Subframes) != channels {
			return nil, newError(KindDecode, path,
				fmt.Errorf("frame has %d channels, stream has %d", len(frame.Subframes), channels))
		}

		n := int(frame.BlockSize)
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				samples = append(samples, float32(sub.Samples[i])*scale)
			}
		}
		decoded += uint64(n)
		if progress != nil && info.NSamples > 0 {
			progress(min(float64(decoded)/float64(info.NSamples), 1))
		}
	}

	return &PcmBuffer{
		Samples:    samples,
		SampleRate: int(info.SampleRate),
		Channels:   channels,
	}, nil
}

// capacityHint bounds the declared sample count by what the file could hold
// uncompressed. The header count is not trusted beyond that.
func capacityHint(path string, nsamples uint64, channels, bps int) int {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	limit := uint64(fi.Size()) * 8 / uint64(bps)
	return int(min(nsamples*uint64(channels), limit))
}
