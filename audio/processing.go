package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lepinkainen/flac2opus/ogg"
)

// DefaultVendor is written to the Opus comment header when no vendor is set
const DefaultVendor = "flac2opus"

// Pipeline converts one FLAC file to Ogg/Opus: decode, resample when the
// input rate is not an Opus rate, encode in 20 ms frames, mux.
type Pipeline struct {
	// NewEncoder is required
	NewEncoder EncoderFactory
	// Decode defaults to DecodeFLAC
	Decode func(ctx context.Context, path string, progress func(float64)) (*PcmBuffer, error)
	// Tags, when set, copies metadata after a successful encode. Failures
	// are logged and do not fail the conversion.
	Tags   TagCopier
	Vendor string
	Logger *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Convert runs task to completion. progress receives non-decreasing whole
// percentages: 0-5 while opening, 5-50 while decoding, 50-100 while
// encoding. The returned error is ErrOutputExists when the output is present
// and overwriting is off, ctx.Err() on cancellation, and an *Error
// otherwise. No partial output is left behind on failure.
func (p *Pipeline) Convert(ctx context.Context, task Task, progress func(int)) error {
	report := newProgressReporter(progress)
	report.set(0)

	if !task.Overwrite {
		if _, err := os.Stat(task.OutputPath); err == nil {
			return ErrOutputExists
		}
	}
	if err := task.Options.Validate(); err != nil {
		return newError(KindEncode, task.InputPath, err)
	}
	if p.NewEncoder == nil {
		return newError(KindEncode, task.InputPath, errors.New("no encoder configured"))
	}

	decode := p.Decode
	if decode == nil {
		decode = DecodeFLAC
	}
	report.set(progressOpened)
	pcm, err := decode(ctx, task.InputPath, report.decode)
	if err != nil {
		return err
	}
	report.set(progressDecoded)

	if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		return newError(KindUnsupportedFormat, task.InputPath,
			fmt.Errorf("invalid stream parameters: %d Hz, %d channels", pcm.SampleRate, pcm.Channels))
	}
	if pcm.Channels > 2 {
		return newError(KindUnsupportedFormat, task.InputPath,
			fmt.Errorf("%d channels, only mono and stereo are supported", pcm.Channels))
	}

	adapted := AdaptRate(pcm)
	if adapted != pcm {
		p.logger().Debug("resampled input",
			"path", task.InputPath, "from", pcm.SampleRate, "to", adapted.SampleRate)
	}

	enc, err := p.NewEncoder(adapted.SampleRate, adapted.Channels, task.Options)
	if err != nil {
		return newError(KindEncode, task.InputPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0o755); err != nil {
		return newError(KindOutputDirectory, task.OutputPath, err)
	}
	out, err := openOutput(task.OutputPath, task.Overwrite)
	if errors.Is(err, os.ErrExist) {
		return ErrOutputExists
	}
	if err != nil {
		return newError(KindMuxWrite, task.OutputPath, err)
	}

	mux := ogg.NewOpusMuxer(out, uuid.New().ID(), ogg.NewOpusHead(adapted.Channels, pcm.SampleRate))
	if err := p.encode(ctx, task, adapted, enc, mux, report); err != nil {
		mux.Abort()
		os.Remove(task.OutputPath)
		return err
	}
	report.set(progressDone)

	if p.Tags != nil {
		if err := copyTags(p.Tags, task.InputPath, task.OutputPath); err != nil && !errors.Is(err, errNoTags) {
			p.logger().Warn("failed to copy tags", "path", task.InputPath, "error", err)
		}
	}
	return nil
}

func openOutput(path string, overwrite bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	return os.OpenFile(path, flags, 0o644)
}

func (p *Pipeline) encode(ctx context.Context, task Task, buf *PcmBuffer, enc FrameEncoder, mux *ogg.OpusMuxer, report *progressReporter) error {
	vendor := p.Vendor
	if vendor == "" {
		vendor = DefaultVendor
	}
	if err := mux.WriteHeader(); err != nil {
		return newError(KindMuxWrite, task.OutputPath, err)
	}
	if err := mux.WriteComments(vendor, nil); err != nil {
		return newError(KindMuxWrite, task.OutputPath, err)
	}

	ch := buf.Channels
	frameLen := FrameSize(buf.SampleRate) * ch
	frames := (len(buf.Samples) + frameLen - 1) / frameLen
	granule := GranuleSamples()

	pcm := make([]float32, frameLen)
	packet := make([]byte, MaxPacketSize)
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := i * frameLen
		end := min(start+frameLen, len(buf.Samples))
		n := copy(pcm, buf.Samples[start:end])
		// Zero-pad the final partial frame
		clear(pcm[n:])

		size, err := enc.Encode(pcm, packet)
		if err != nil {
			return newError(KindEncode, task.InputPath, fmt.Errorf("frame %d: %w", i, err))
		}
		if err := mux.WriteAudio(packet[:size], granule); err != nil {
			return newError(KindMuxWrite, task.OutputPath, err)
		}
		report.encode(i+1, frames)
	}

	if err := mux.Close(); err != nil {
		return newError(KindMuxWrite, task.OutputPath, err)
	}
	return nil
}
