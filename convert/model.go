package convert

import (
	"fmt"
	"time"

	"github.com/lepinkainen/flac2opus/audio"
)

// Model is the ordered job list of a conversion run. It is not safe for
// concurrent use; the Controller owns it from a single goroutine.
type Model struct {
	jobs  []Job
	index map[string]int
	// next is the FIFO cursor: no job before it is pending
	next int
}

// NewModel returns an empty model
func NewModel() *Model {
	return &Model{index: make(map[string]int)}
}

// Load replaces the job list with one pending job per distinct input path
// and returns the number of jobs
func (m *Model) Load(files []audio.ScannedFile) int {
	m.jobs = make([]Job, 0, len(files))
	m.index = make(map[string]int, len(files))
	m.next = 0
	for _, f := range files {
		if _, dup := m.index[f.Path]; dup {
			continue
		}
		m.index[f.Path] = len(m.jobs)
		m.jobs = append(m.jobs, Job{
			InputPath: f.Path,
			RelPath:   f.RelPath,
			Size:      f.Size,
		})
	}
	return len(m.jobs)
}

// Len is the number of jobs
func (m *Model) Len() int { return len(m.jobs) }

// Job returns a copy of job i
func (m *Model) Job(i int) Job { return m.jobs[i] }

// Lookup finds a job by input path
func (m *Model) Lookup(path string) (Job, bool) {
	i, ok := m.index[path]
	if !ok {
		return Job{}, false
	}
	return m.jobs[i], true
}

// Jobs returns a copy of the job list
func (m *Model) Jobs() []Job {
	return append([]Job(nil), m.jobs...)
}

// Count returns how many jobs are in status s
func (m *Model) Count(s Status) int {
	n := 0
	for i := range m.jobs {
		if m.jobs[i].Status == s {
			n++
		}
	}
	return n
}

// nextPending returns the first pending job in list order, or -1
func (m *Model) nextPending() int {
	for m.next < len(m.jobs) && m.jobs[m.next].Status != StatusPending {
		m.next++
	}
	if m.next == len(m.jobs) {
		return -1
	}
	return m.next
}

// assignOutputs sets the output path of every pending job
func (m *Model) assignOutputs(outputRoot string, preserve bool) {
	for i := range m.jobs {
		if m.jobs[i].Status == StatusPending {
			m.jobs[i].OutputPath = OutputPath(outputRoot, m.jobs[i].RelPath, preserve)
		}
	}
}

func (m *Model) begin(i int, now time.Time) error {
	if err := m.transition(i, StatusConverting); err != nil {
		return err
	}
	j := &m.jobs[i]
	j.Progress = 0
	j.Error = ""
	j.Started = now
	j.Finished = time.Time{}
	return nil
}

func (m *Model) finish(i int, s Status, msg string, now time.Time) error {
	if !s.Terminal() {
		return fmt.Errorf("finish job %d: %s is not a terminal status", i, s)
	}
	if err := m.transition(i, s); err != nil {
		return err
	}
	j := &m.jobs[i]
	j.Error = msg
	j.Finished = now
	if s == StatusCompleted {
		j.Progress = 100
	}
	return nil
}

// setProgress records pct for a converting job and reports whether it
// changed. Progress never moves backwards.
func (m *Model) setProgress(i, pct int) bool {
	j := &m.jobs[i]
	if j.Status != StatusConverting || pct <= j.Progress {
		return false
	}
	j.Progress = min(pct, 100)
	return true
}

func (m *Model) transition(i int, to Status) error {
	if i < 0 || i >= len(m.jobs) {
		return fmt.Errorf("job %d out of range", i)
	}
	from := m.jobs[i].Status
	if !isValidTransition(from, to) {
		return fmt.Errorf("job %d: invalid transition: %s -> %s", i, from, to)
	}
	m.jobs[i].Status = to
	return nil
}

// AggregateProgress summarizes a job list at one instant
type AggregateProgress struct {
	Total      int
	Pending    int
	Converting int
	Completed  int
	Failed     int
	Skipped    int
	Cancelled  int
	// Overall is the fraction of jobs in a terminal state
	Overall float64
	// Elapsed is the run time so far; Remaining is zero while unknown
	Elapsed   time.Duration
	Remaining time.Duration
	InFlight  []string
}

// Finished is the number of jobs in a terminal state
func (a AggregateProgress) Finished() int {
	return a.Completed + a.Failed + a.Skipped + a.Cancelled
}

// Done reports whether nothing is pending or converting
func (a AggregateProgress) Done() bool {
	return a.Pending == 0 && a.Converting == 0
}

// Aggregate derives counts and timing from the job list alone. started and
// ended bound the run; a zero ended means the run is still going at now.
func (m *Model) Aggregate(started, ended, now time.Time) AggregateProgress {
	return Summarize(m.jobs, started, ended, now)
}

// Summarize computes AggregateProgress for jobs. The remaining-time
// estimate counts partial progress of in-flight jobs so it does not jump
// each time a job finishes.
func Summarize(jobs []Job, started, ended, now time.Time) AggregateProgress {
	a := AggregateProgress{Total: len(jobs)}
	var partial float64
	for _, j := range jobs {
		switch j.Status {
		case StatusPending:
			a.Pending++
		case StatusConverting:
			a.Converting++
			partial += float64(j.Progress) / 100
			a.InFlight = append(a.InFlight, j.InputPath)
		case StatusCompleted:
			a.Completed++
		case StatusFailed:
			a.Failed++
		case StatusSkipped:
			a.Skipped++
		case StatusCancelled:
			a.Cancelled++
		}
	}
	if a.Total > 0 {
		a.Overall = float64(a.Finished()) / float64(a.Total)
	}

	if started.IsZero() {
		return a
	}
	end := now
	if !ended.IsZero() {
		end = ended
	}
	a.Elapsed = end.Sub(started)

	done := float64(a.Finished()) + partial
	if ended.IsZero() && done > 0 && a.Elapsed > 0 {
		left := float64(a.Total) - done
		a.Remaining = time.Duration(float64(a.Elapsed) * left / done)
	}
	return a
}
