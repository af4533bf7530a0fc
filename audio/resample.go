package audio

import "slices"

// OpusRates are the sample rates the Opus encoder accepts directly
var OpusRates = []int{8000, 12000, 16000, 24000, 48000}

// TargetRate is the rate used for any input the encoder cannot take as is
const TargetRate = 48000

// IsOpusRate reports whether rate can be passed to the encoder unchanged
func IsOpusRate(rate int) bool {
	return slices.Contains(OpusRates, rate)
}

// AdaptRate returns buf unchanged when its rate is an Opus rate and a copy
// resampled to TargetRate otherwise
func AdaptRate(buf *PcmBuffer) *PcmBuffer {
	if IsOpusRate(buf.SampleRate) {
		return buf
	}
	return Resample(buf, TargetRate)
}

// Resample converts buf to rate by linear interpolation between adjacent
// input frames. The output has floor(frames*rate/inputRate) frames; the
// upper neighbour is clamped to the last input frame.
func Resample(buf *PcmBuffer, rate int) *PcmBuffer {
	out := &PcmBuffer{SampleRate: rate, Channels: buf.Channels}
	in := buf.Frames()
	if in == 0 || buf.SampleRate <= 0 || rate <= 0 {
		return out
	}
	if rate == buf.SampleRate {
		out.Samples = slices.Clone(buf.Samples)
		return out
	}

	ch := buf.Channels
	src, dst := int64(buf.SampleRate), int64(rate)
	frames := int(int64(in) * dst / src)
	out.Samples = make([]float32, frames*ch)

	for i := 0; i < frames; i++ {
		// Source position i*src/dst, kept exact in integers
		num := int64(i) * src
		i0 := int(num / dst)
		frac := float32(num%dst) / float32(dst)
		i1 := min(i0+1, in-1)
		for c := 0; c < ch; c++ {
			a := buf.Samples[i0*ch+c]
			b := buf.Samples[i1*ch+c]
			out.Samples[i*ch+c] = a + (b-a)*frac
		}
	}
	return out
}
