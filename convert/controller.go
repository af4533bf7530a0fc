package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/flac2opus/audio"
)

// ErrClosed is returned by calls made after Close
var ErrClosed = errors.New("controller closed")

// Messages reported through run and scan error events
const (
	MsgNoOutputDir    = "Please select an output directory"
	MsgNoInputDir     = "Please select an input directory"
	MsgNoFiles        = "No files to convert"
	MsgAlreadyRunning = "Conversion already running"
	MsgScanInProgress = "Scan in progress"
	MsgRunInProgress  = "Cannot scan while converting"
)

// Runner converts a single file. audio.Pipeline implements it.
type Runner interface {
	Convert(ctx context.Context, task audio.Task, progress func(int)) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, task audio.Task, progress func(int)) error

func (f RunnerFunc) Convert(ctx context.Context, task audio.Task, progress func(int)) error {
	return f(ctx, task, progress)
}

// Option configures a Controller
type Option func(*Controller)

func WithObserver(o Observer) Option { return func(c *Controller) { c.observer = o } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithSettings(s Settings) Option { return func(c *Controller) { c.settings = s.normalized() } }

func WithScanner(s *audio.Scanner) Option { return func(c *Controller) { c.scanner = s } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

type runState struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	active   bool
	stopping bool
	started  time.Time
	ended    time.Time
}

// Controller owns the job model and the worker pool. All state lives on
// one goroutine; public methods post commands to it, and workers post
// their progress and results back. Events reach the Observer in the order
// the loop produced them.
type Controller struct {
	runner   Runner
	scanner  *audio.Scanner
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	inbox    chan func()
	quit     chan struct{}
	loopDone chan struct{}
	workers  errgroup.Group
	once     sync.Once

	// loop goroutine only
	settings Settings
	model    *Model
	run      *runState
	scanning bool
	closing  bool
	seq      int64
	waiters  []chan struct{}
}

// New starts a controller that converts files with runner
func New(runner Runner, opts ...Option) *Controller {
	c := &Controller{
		runner:   runner,
		settings: DefaultSettings(),
		model:    NewModel(),
		now:      time.Now,
		inbox:    make(chan func(), 64),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scanner == nil {
		c.scanner = audio.NewScanner()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// submit queues fn on the loop goroutine
func (c *Controller) submit(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop goroutine and waits for it
func (c *Controller) call(fn func()) error {
	done := make(chan struct{})
	if !c.submit(func() { fn(); close(done) }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-c.quit:
		return ErrClosed
	}
}

// Scan replaces the job list with the FLAC files under dir. An empty dir
// rescans the configured input directory. A scan requested while another
// is running is ignored.
func (c *Controller) Scan(dir string) { c.submit(func() { c.scan(dir) }) }

// StopScan ends a running scan without loading its results
func (c *Controller) StopScan() { c.scanner.Stop() }

// Start converts every pending job
func (c *Controller) Start() { c.submit(c.start) }

// Stop cancels in-flight jobs and leaves pending jobs untouched
func (c *Controller) Stop() { c.submit(c.stop) }

// SetSettings replaces the settings. Encoder and path settings apply to
// jobs dispatched afterwards; a larger worker count takes effect at once.
func (c *Controller) SetSettings(s Settings) {
	c.submit(func() {
		workers := c.settings.Workers
		c.settings = s.normalized()
		if c.settings.Workers != workers {
			c.emit(Event{Kind: EventWorkersChanged, Count: c.settings.Workers})
		}
		c.dispatch()
	})
}

// SetWorkers changes the pool size. Shrinking lets in-flight jobs finish.
func (c *Controller) SetWorkers(n int) {
	c.submit(func() {
		c.settings.Workers = max(n, 1)
		c.emit(Event{Kind: EventWorkersChanged, Count: c.settings.Workers})
		c.dispatch()
	})
}

// Settings returns the current settings
func (c *Controller) Settings() Settings {
	var s Settings
	c.call(func() { s = c.settings })
	return s
}

// Snapshot is a consistent copy of the controller state
type Snapshot struct {
	RunID    string
	Running  bool
	Stopping bool
	Scanning bool
	Settings Settings
	Jobs     []Job
	Progress AggregateProgress
}

// Snapshot returns the current job list and aggregate progress
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	c.call(func() {
		s = Snapshot{
			Scanning: c.scanning,
			Settings: c.settings,
			Jobs:     c.model.Jobs(),
			Progress: c.aggregate(),
		}
		if c.run != nil {
			s.RunID = c.run.id
			s.Running = c.run.active
			s.Stopping = c.run.active && c.run.stopping
		}
	})
	return s
}

// Wait blocks until no scan and no run is in progress
func (c *Controller) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	err := c.call(func() {
		if c.busy() {
			c.waiters = append(c.waiters, ch)
		} else {
			close(ch)
		}
	})
	if err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any scan or run, waits for workers to return and shuts the
// loop down
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.call(func() {
			c.closing = true
			c.stop()
		})
		c.scanner.Stop()
		c.workers.Wait()
		close(c.quit)
		<-c.loopDone
	})
	return nil
}

func (c *Controller) busy() bool {
	return c.scanning || (c.run != nil && c.run.active)
}

func (c *Controller) notifyIdle() {
	if c.busy() {
		return
	}
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

func (c *Controller) emit(ev Event) {
	c.seq++
	ev.Seq = c.seq
	ev.Time = c.now()
	if c.run != nil {
		ev.RunID = c.run.id
	}
	if c.observer != nil {
		c.observer(ev)
	}
}

func (c *Controller) aggregate() AggregateProgress {
	if c.run == nil {
		return c.model.Aggregate(time.Time{}, time.Time{}, c.now())
	}
	return c.model.Aggregate(c.run.started, c.run.ended, c.now())
}

func (c *Controller) scan(dir string) {
	if dir == "" {
		dir = c.settings.InputDir
	}
	switch {
	case c.closing:
		return
	case dir == "":
		c.emit(Event{Kind: EventScanError, Message: MsgNoInputDir})
		return
	case c.run != nil && c.run.active:
		c.emit(Event{Kind: EventScanError, Message: MsgRunInProgress})
		return
	case c.scanning:
		c.logger.Debug("scan already running, ignoring request", "dir", dir)
		return
	}

	events, ok := c.scanner.Start(dir)
	if !ok {
		c.logger.Debug("scanner busy, ignoring request", "dir", dir)
		return
	}
	c.scanning = true
	c.settings.InputDir = dir
	c.workers.Go(func() error {
		for ev := range events {
			c.submit(func() { c.onScanEvent(ev) })
		}
		c.submit(c.scanFinished)
		return nil
	})
}

func (c *Controller) onScanEvent(ev audio.ScanEvent) {
	switch ev.Kind {
	case audio.ScanStarted:
		c.model.Load(nil)
		c.logger.Info("scan started", "dir", ev.Root)
		c.emit(Event{Kind: EventScanStarted, Path: ev.Root})
	case audio.ScanDiscovered:
		// Count and Bytes are totals as of the end of the batch
		count, bytes := ev.Count-len(ev.Files), ev.Bytes
		for _, f := range ev.Files {
			bytes -= f.Size
		}
		for _, f := range ev.Files {
			count++
			bytes += f.Size
			c.emit(Event{Kind: EventFileDiscovered, Path: f.Path, Count: count, Bytes: bytes})
		}
	case audio.ScanCompleted:
		n := c.model.Load(ev.Files)
		c.logger.Info("scan completed", "dir", ev.Root, "files", n, "bytes", ev.Bytes)
		c.emit(Event{Kind: EventScanCompleted, Path: ev.Root, Count: n, Bytes: ev.Bytes, Progress: c.aggregate()})
	case audio.ScanFailed:
		c.logger.Error("scan failed", "dir", ev.Root, "error", ev.Err)
		c.emit(Event{Kind: EventScanError, Path: ev.Root, Message: ev.Err.Error()})
	}
}

func (c *Controller) scanFinished() {
	c.scanning = false
	c.notifyIdle()
}

func (c *Controller) start() {
	var msg string
	switch {
	case c.closing:
		return
	case c.run != nil && c.run.active:
		msg = MsgAlreadyRunning
	case c.scanning:
		msg = MsgScanInProgress
	case c.settings.OutputDir == "":
		msg = MsgNoOutputDir
	case c.model.Count(StatusPending) == 0:
		msg = MsgNoFiles
	}
	if msg != "" {
		c.logger.Warn("conversion not started", "reason", msg)
		c.emit(Event{Kind: EventRunError, Message: msg, Progress: c.aggregate()})
		return
	}

	c.model.assignOutputs(c.settings.OutputDir, c.settings.PreserveStructure)
	ctx, cancel := context.WithCancel(context.Background())
	c.run = &runState{
		id:      uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		active:  true,
		started: c.now(),
	}
	c.logger.Info("conversion started",
		"run", c.run.id,
		"jobs", c.model.Count(StatusPending),
		"workers", c.settings.Workers,
		"output", c.settings.OutputDir)
	c.emit(Event{Kind: EventConversionStarted, Count: c.settings.Workers, Progress: c.aggregate()})
	c.dispatch()
}

func (c *Controller) stop() {
	r := c.run
	if r == nil || !r.active || r.stopping {
		return
	}
	r.stopping = true
	r.cancel()
	c.logger.Info("stopping conversion", "run", r.id, "in_flight", c.model.Count(StatusConverting))
	c.maybeFinish()
}

// dispatch starts pending jobs in list order while fewer than Workers are
// converting
func (c *Controller) dispatch() {
	r := c.run
	if r == nil || !r.active {
		return
	}
	for !r.stopping && !c.closing && c.model.Count(StatusConverting) < c.settings.Workers {
		i := c.model.nextPending()
		if i < 0 {
			break
		}
		if err := c.model.begin(i, c.now()); err != nil {
			c.logger.Error("dispatch failed", "error", err)
			break
		}
		job := c.model.Job(i)
		c.logger.Debug("job started", "path", job.InputPath, "output", job.OutputPath)
		c.emit(Event{Kind: EventStatusChanged, Path: job.InputPath, Status: job.Status, Progress: c.aggregate()})

		task := audio.Task{
			InputPath:  job.InputPath,
			OutputPath: job.OutputPath,
			Options:    c.settings.Encode,
			Overwrite:  c.settings.Overwrite,
		}
		ctx := r.ctx
		c.workers.Go(func() error {
			c.work(ctx, i, task)
			return nil
		})
	}
	c.maybeFinish()
}

func (c *Controller) work(ctx context.Context, i int, task audio.Task) {
	var err error
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("conversion panicked: %v", p)
		}
		c.submit(func() { c.onFinished(i, err) })
	}()
	err = c.runner.Convert(ctx, task, func(pct int) {
		c.submit(func() { c.onProgress(i, pct) })
	})
}

func (c *Controller) onProgress(i, pct int) {
	if i >= c.model.Len() || !c.model.setProgress(i, pct) {
		return
	}
	job := c.model.Job(i)
	c.emit(Event{Kind: EventProgressChanged, Path: job.InputPath, Status: job.Status, Percent: job.Progress})
}

// classify maps a runner result onto a terminal status and message
func classify(err error) (Status, string) {
	switch {
	case err == nil:
		return StatusCompleted, ""
	case errors.Is(err, audio.ErrOutputExists):
		return StatusSkipped, err.Error()
	case errors.Is(err, context.Canceled):
		return StatusCancelled, "cancelled"
	}
	return StatusFailed, err.Error()
}

func (c *Controller) onFinished(i int, err error) {
	status, msg := classify(err)
	if ferr := c.model.finish(i, status, msg, c.now()); ferr != nil {
		c.logger.Error("finishing job", "error", ferr)
		return
	}
	job := c.model.Job(i)
	switch status {
	case StatusFailed:
		c.logger.Warn("job failed", "path", job.InputPath, "kind", audio.KindOf(err).String(), "error", err)
	default:
		c.logger.Info("job finished", "path", job.InputPath, "status", status.String(), "elapsed", job.Elapsed(c.now()))
	}
	c.emit(Event{
		Kind:     EventStatusChanged,
		Path:     job.InputPath,
		Status:   status,
		Message:  msg,
		Progress: c.aggregate(),
	})
	c.dispatch()
}

// maybeFinish ends the run once nothing is converting and either nothing
// is pending or a stop was requested
func (c *Controller) maybeFinish() {
	r := c.run
	if r == nil || !r.active || c.model.Count(StatusConverting) > 0 {
		return
	}
	pending := c.model.Count(StatusPending)
	if pending > 0 && !r.stopping {
		return
	}
	r.active = false
	r.ended = c.now()
	r.cancel()

	agg := c.aggregate()
	kind := EventRunCompleted
	if pending > 0 {
		kind = EventRunStopped
	}
	c.logger.Info("conversion finished",
		"run", r.id,
		"result", kind.String(),
		"completed", agg.Completed,
		"failed", agg.Failed,
		"skipped", agg.Skipped,
		"cancelled", agg.Cancelled,
		"pending", agg.Pending,
		"elapsed", agg.Elapsed)
	c.emit(Event{Kind: kind, Progress: agg})
	c.notifyIdle()
}
