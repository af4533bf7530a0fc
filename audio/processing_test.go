package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/lepinkainen/flac2opus/ogg"
)

// fakeEncoder emits a fixed three byte packet per frame and records what it
// was given
type fakeEncoder struct {
	mu        sync.Mutex
	rate      int
	channels  int
	frameLens []int
	failAt    int
	onFrame   func(n int)
}

func (e *fakeEncoder) Encode(pcm []float32, packet []byte) (int, error) {
	e.mu.Lock()
	e.frameLens = append(e.frameLens, len(pcm))
	n := len(e.frameLens)
	e.mu.Unlock()
	if e.onFrame != nil {
		e.onFrame(n)
	}
	if e.failAt > 0 && n == e.failAt {
		return 0, errors.New("encoder exploded")
	}
	return copy(packet, []byte{0xf8, byte(n), byte(n >> 8)}), nil
}

func (e *fakeEncoder) factory() EncoderFactory {
	return func(rate, channels int, opts EncodeOptions) (FrameEncoder, error) {
		e.rate, e.channels = rate, channels
		return e, nil
	}
}

func verifyOutput(t *testing.T, path string) *ogg.StreamInfo {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	info, err := ogg.Verify(f, nil)
	if err != nil {
		t.Fatalf("output does not verify: %v", err)
	}
	return info
}

func newTask(dir string) Task {
	return Task{
		InputPath:  filepath.Join(dir, "in.flac"),
		OutputPath: filepath.Join(dir, "out", "nested", "in.opus"),
		Options:    DefaultEncodeOptions(),
	}
}

func TestPipelineConvert(t *testing.T) {
	tests := []struct {
		name        string
		rate        int
		channels    int
		frames      int
		encodeRate  int
		wantPackets int
	}{
		{"cd mono one second", 44100, 1, 44100, 48000, 50},
		{"48k stereo partial frame", 48000, 2, 48000 + 100, 48000, 51},
		{"16k passes through", 16000, 1, 16000, 16000, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			task := newTask(dir)
			flacFixture{rate: tt.rate, channels: tt.channels, samples: tone(tt.channels, tt.frames)}.write(t, task.InputPath)

			enc := &fakeEncoder{}
			p := &Pipeline{NewEncoder: enc.factory()}
			var progress []int
			if err := p.Convert(context.Background(), task, func(pct int) { progress = append(progress, pct) }); err != nil {
				t.Fatalf("Convert: %v", err)
			}

			if enc.rate != tt.encodeRate || enc.channels != tt.channels {
				t.Errorf("encoder opened at %d Hz %d ch, want %d Hz %d ch", enc.rate, enc.channels, tt.encodeRate, tt.channels)
			}
			frameLen := FrameSize(tt.encodeRate) * tt.channels
			for i, n := range enc.frameLens {
				if n != frameLen {
					t.Fatalf("frame %d has %d samples, want %d", i, n, frameLen)
				}
			}

			info := verifyOutput(t, task.OutputPath)
			if info.AudioPackets != tt.wantPackets {
				t.Errorf("audio packets = %d, want %d", info.AudioPackets, tt.wantPackets)
			}
			if info.Granule != int64(tt.wantPackets*960) {
				t.Errorf("final granule = %d, want %d", info.Granule, tt.wantPackets*960)
			}
			if int(info.Head.InputSampleRate) != tt.rate || int(info.Head.Channels) != tt.channels {
				t.Errorf("OpusHead = %+v", info.Head)
			}
			if info.Tags.Vendor != DefaultVendor {
				t.Errorf("vendor = %q", info.Tags.Vendor)
			}

			if len(progress) == 0 || progress[0] != 0 || progress[len(progress)-1] != 100 {
				t.Errorf("progress should run from 0 to 100, got %v", progress)
			}
			if !slices.IsSorted(progress) {
				t.Errorf("progress is not monotonic: %v", progress)
			}
			if len(slices.Compact(slices.Clone(progress))) != len(progress) {
				t.Errorf("progress repeats values: %v", progress)
			}
		})
	}
}

func TestPipelineSkipsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir)
	flacFixture{rate: 48000, channels: 1, samples: tone(1, 960)}.write(t, task.InputPath)
	if err := os.MkdirAll(filepath.Dir(task.OutputPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(task.OutputPath, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := &fakeEncoder{}
	p := &Pipeline{NewEncoder: enc.factory()}
	if err := p.Convert(context.Background(), task, nil); !errors.Is(err, ErrOutputExists) {
		t.Fatalf("Convert = %v, want ErrOutputExists", err)
	}
	if data, _ := os.ReadFile(task.OutputPath); string(data) != "keep me" {
		t.Error("existing output was modified")
	}
	if len(enc.frameLens) != 0 {
		t.Error("skipped job still encoded frames")
	}

	task.Overwrite = true
	if err := p.Convert(context.Background(), task, nil); err != nil {
		t.Fatalf("Convert with overwrite: %v", err)
	}
	if info := verifyOutput(t, task.OutputPath); info.AudioPackets != 1 {
		t.Errorf("audio packets = %d, want 1", info.AudioPackets)
	}
}

func TestPipelineFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, task Task)
		encoder  *fakeEncoder
		wantKind Kind
	}{
		{
			name: "corrupt input",
			setup: func(t *testing.T, task Task) {
				os.WriteFile(task.InputPath, []byte("fLaC but not really"), 0o644)
			},
			encoder:  &fakeEncoder{},
			wantKind: KindDecode,
		},
		{
			name: "too many channels",
			setup: func(t *testing.T, task Task) {
				flacFixture{rate: 48000, channels: 3, samples: tone(3, 960)}.write(t, task.InputPath)
			},
			encoder:  &fakeEncoder{},
			wantKind: KindUnsupportedFormat,
		},
		{
			name: "encoder failure mid stream",
			setup: func(t *testing.T, task Task) {
				flacFixture{rate: 48000, channels: 1, samples: tone(1, 9600)}.write(t, task.InputPath)
			},
			encoder:  &fakeEncoder{failAt: 4},
			wantKind: KindEncode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			task := newTask(dir)
			tt.setup(t, task)

			p := &Pipeline{NewEncoder: tt.encoder.factory()}
			err := p.Convert(context.Background(), task, nil)
			if KindOf(err) != tt.wantKind {
				t.Fatalf("Convert = %v, want kind %v", err, tt.wantKind)
			}
			if _, err := os.Stat(task.OutputPath); !os.IsNotExist(err) {
				t.Error("failed conversion left an output file behind")
			}
		})
	}
}

func TestPipelineOutputDirectoryError(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir)
	flacFixture{rate: 48000, channels: 1, samples: tone(1, 960)}.write(t, task.InputPath)
	// A file where the output directory should be
	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p := &Pipeline{NewEncoder: (&fakeEncoder{}).factory()}
	if err := p.Convert(context.Background(), task, nil); KindOf(err) != KindOutputDirectory {
		t.Errorf("Convert = %v, want an output directory error", err)
	}
}

func TestPipelineCancel(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir)
	flacFixture{rate: 48000, channels: 2, samples: tone(2, 48000)}.write(t, task.InputPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	enc := &fakeEncoder{onFrame: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	p := &Pipeline{NewEncoder: enc.factory()}
	if err := p.Convert(ctx, task, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Convert = %v, want context.Canceled", err)
	}
	if len(enc.frameLens) != 3 {
		t.Errorf("encoded %d frames after cancellation, want 3", len(enc.frameLens))
	}
	if _, err := os.Stat(task.OutputPath); !os.IsNotExist(err) {
		t.Error("canceled conversion left an output file behind")
	}
}

func TestPipelineRequiresEncoder(t *testing.T) {
	task := newTask(t.TempDir())
	if err := (&Pipeline{}).Convert(context.Background(), task, nil); KindOf(err) != KindEncode {
		t.Errorf("Convert = %v, want an encode error", err)
	}

	task.Options.Bitrate = 1
	p := &Pipeline{NewEncoder: (&fakeEncoder{}).factory()}
	if err := p.Convert(context.Background(), task, nil); KindOf(err) != KindEncode {
		t.Errorf("invalid bitrate = %v, want an encode error", err)
	}
}

func TestPipelineCopiesTags(t *testing.T) {
	dir := t.TempDir()
	task := newTask(dir)
	flacFixture{
		rate:     44100,
		channels: 2,
		samples:  tone(2, 4410),
		comments: []string{"TITLE=First Light", "ARTIST=Somebody", "TRACKNUMBER=3/12"},
		picture:  &Picture{Type: PictureFrontCover, MIME: "image/png", Data: []byte{1, 2, 3, 4}},
	}.write(t, task.InputPath)

	p := &Pipeline{NewEncoder: (&fakeEncoder{}).factory(), Tags: FileTags{}}
	if err := p.Convert(context.Background(), task, nil); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	info := verifyOutput(t, task.OutputPath)
	if info.AudioPackets != 5 {
		t.Errorf("audio packets = %d, want 5", info.AudioPackets)
	}
	tags, err := FileTags{}.ReadTags(task.OutputPath)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if tags.Title != "First Light" || tags.Artist != "Somebody" || tags.Track != 3 || tags.TrackTotal != 12 {
		t.Errorf("tags = %+v", tags)
	}
	if tags.Cover == nil || tags.Cover.MIME != "image/png" || len(tags.Cover.Data) != 4 {
		t.Errorf("cover = %+v", tags.Cover)
	}
}
