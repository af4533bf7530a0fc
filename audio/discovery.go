package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// DefaultBatchSize is how many files a ScanDiscovered event carries
const DefaultBatchSize = 10

var errScanStopped = errors.New("scan stopped")

// ScanEventKind identifies a scanner notification
type ScanEventKind int

const (
	ScanStarted ScanEventKind = iota
	ScanDiscovered
	ScanCompleted
	ScanFailed
)

func (k ScanEventKind) String() string {
	switch k {
	case ScanStarted:
		return "started"
	case ScanDiscovered:
		return "discovered"
	case ScanCompleted:
		return "completed"
	case ScanFailed:
		return "failed"
	}
	return "unknown"
}

// ScanEvent is sent on the channel returned by Scanner.Start. Count and
// Bytes are the running totals at the time of the event.
type ScanEvent struct {
	Kind  ScanEventKind
	Root  string
	Files []ScannedFile
	Count int
	Bytes int64
	Err   error
}

// ScanResult is the complete outcome of a directory scan
type ScanResult struct {
	Root  string
	Files []ScannedFile
	Bytes int64
}

type scanRun struct {
	stop atomic.Bool
}

// Scanner walks a directory tree in the background and reports FLAC files.
// Only one scan runs at a time.
type Scanner struct {
	BatchSize int

	mu     sync.Mutex
	active *scanRun
	files  int
	bytes  int64
}

// NewScanner returns a Scanner that reports files in batches of
// DefaultBatchSize
func NewScanner() *Scanner {
	return &Scanner{BatchSize: DefaultBatchSize}
}

// Start begins scanning root. The returned channel receives a ScanStarted
// event, ScanDiscovered batches, and finally either ScanCompleted or
// ScanFailed before it is closed. A stopped scan closes the channel without
// a final event. If a scan is already running, Start does nothing and
// returns false.
func (s *Scanner) Start(root string) (<-chan ScanEvent, bool) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, false
	}
	run := &scanRun{}
	s.active = run
	s.files, s.bytes = 0, 0
	s.mu.Unlock()

	events := make(chan ScanEvent, 16)
	go s.run(root, run, events)
	return events, true
}

// Stop asks the running scan to end. It is a no-op when idle.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.stop.Store(true)
	}
}

// Scanning reports whether a scan is in flight
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Progress returns the number and total size of files found so far by the
// current or most recent scan
func (s *Scanner) Progress() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files, s.bytes
}

func (s *Scanner) batchSize() int {
	if s.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return s.BatchSize
}

func (s *Scanner) run(root string, run *scanRun, events chan<- ScanEvent) {
	defer close(events)
	events <- ScanEvent{Kind: ScanStarted, Root: root}

	size := s.batchSize()
	batch := make([]ScannedFile, 0, size)
	send := func() {
		count, bytes := s.Progress()
		events <- ScanEvent{Kind: ScanDiscovered, Root: root, Files: batch, Count: count, Bytes: bytes}
		batch = make([]ScannedFile, 0, size)
	}

	res, err := walkFlac(root, run.stop.Load, func(f ScannedFile) {
		s.mu.Lock()
		s.files++
		s.bytes += f.Size
		s.mu.Unlock()
		batch = append(batch, f)
		if len(batch) == size {
			send()
		}
	})

	// Clear the run before the final events so a listener can start the
	// next scan as soon as it sees completion.
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	if errors.Is(err, errScanStopped) {
		return
	}
	if len(batch) > 0 {
		send()
	}
	if err != nil {
		events <- ScanEvent{Kind: ScanFailed, Root: root, Err: err}
		return
	}
	events <- ScanEvent{
		Kind:  ScanCompleted,
		Root:  res.Root,
		Files: res.Files,
		Count: len(res.Files),
		Bytes: res.Bytes,
	}
}

// ScanDirectory walks root synchronously and returns every FLAC file in
// lexical order. The walk ends early with ctx.Err() when ctx is canceled.
func ScanDirectory(ctx context.Context, root string) (*ScanResult, error) {
	res, err := walkFlac(root, func() bool { return ctx.Err() != nil }, nil)
	if errors.Is(err, errScanStopped) {
		return nil, ctx.Err()
	}
	return res, err
}

func walkFlac(root string, stopped func() bool, found func(ScannedFile)) (*ScanResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, newError(KindScan, root, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, newError(KindScan, abs, err)
	}
	if !fi.IsDir() {
		return nil, newError(KindScan, abs, fmt.Errorf("not a directory"))
	}

	res := &ScanResult{Root: abs}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if stopped() {
			return errScanStopped
		}
		if err != nil {
			return err
		}
		// Skip directories, symlinks and other non-regular entries
		if !d.Type().IsRegular() || !IsFlacFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		f := ScannedFile{
			Path:    path,
			RelPath: rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		res.Files = append(res.Files, f)
		res.Bytes += f.Size
		if found != nil {
			found(f)
		}
		return nil
	})
	if errors.Is(err, errScanStopped) {
		return res, err
	}
	if err != nil {
		return nil, newError(KindScan, abs, err)
	}
	return res, nil
}
