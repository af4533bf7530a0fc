package audio

import (
	"time"
)

// ScannedFile is a FLAC file found under a scan root
type ScannedFile struct {
	Path    string // absolute path
	RelPath string // path relative to the scan root
	Size    int64
	ModTime time.Time
}

// PcmBuffer holds interleaved float samples in [-1, 1]
type PcmBuffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of samples per channel
func (b *PcmBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer
func (b *PcmBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Task describes one file conversion
type Task struct {
	InputPath  string
	OutputPath string
	Options    EncodeOptions
	Overwrite  bool
}
