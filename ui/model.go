package ui

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/flac2opus/convert"
)

// Controls are the controller commands the TUI issues. They are called
// from tea.Cmd goroutines, never from Update.
type Controls interface {
	Scan(dir string)
	StopScan()
	Start()
	Stop()
	SetWorkers(n int)
}

// FileLogEntry is one finished job in the processed files list
type FileLogEntry struct {
	Name    string
	Status  convert.Status
	Message string
}

func (f FileLogEntry) FilterValue() string { return f.Name }
func (f FileLogEntry) Title() string       { return f.Name }
func (f FileLogEntry) Description() string {
	return StatusLabel(f.Status, f.Message)
}

type phase int

const (
	phaseScanning phase = iota
	phaseConverting
	phaseDone
)

// ConvertModel is the conversion TUI. It scans InputDir, starts the run
// once files are found and quits when the run ends.
type ConvertModel struct {
	controls Controls
	events   <-chan convert.Event
	inputDir string

	// Application state
	phase     phase
	workers   int
	found     int
	foundSize int64
	agg       convert.AggregateProgress
	inFlight  map[string]int
	order     []string
	entries   []FileLogEntry
	message   string
	stopping  bool

	// UI components
	overallProgress progress.Model
	jobProgress     progress.Model
	fileList        list.Model

	// Layout
	width  int
	height int

	quitting bool

	// Version for display
	Version string
}

// NewConvertModel creates the TUI for one scan-and-convert session
func NewConvertModel(controls Controls, events <-chan convert.Event, inputDir string, workers int, version string) ConvertModel {
	fileList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileList.Title = "Processed Files"
	fileList.SetShowHelp(false)

	return ConvertModel{
		controls:        controls,
		events:          events,
		inputDir:        inputDir,
		workers:         workers,
		inFlight:        map[string]int{},
		overallProgress: overallBar(),
		jobProgress:     jobBar(30),
		fileList:        fileList,
		Version:         version,
	}
}

// Init implements tea.Model
func (m ConvertModel) Init() tea.Cmd {
	return tea.Batch(WaitForEvent(m.events), m.send(func(c Controls) { c.Scan(m.inputDir) }))
}

// send runs fn against the controller off the update goroutine
func (m ConvertModel) send(fn func(Controls)) tea.Cmd {
	controls := m.controls
	return func() tea.Msg {
		fn(controls)
		return controlSentMsg{}
	}
}

// Update implements tea.Model
func (m ConvertModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.overallProgress.Width = max(msg.Width-30, 20)
		m.fileList.SetSize(msg.Width-4, msg.Height/3)

	case ConvertEventMsg:
		cmd := m.handleEvent(msg.Event)
		if m.quitting {
			return m, cmd
		}
		return m, tea.Batch(cmd, WaitForEvent(m.events))

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m ConvertModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		switch {
		case m.phase == phaseScanning:
			m.quitting = true
			return m, tea.Sequence(m.send(Controls.StopScan), tea.Quit)
		case m.phase == phaseConverting && !m.stopping:
			m.stopping = true
			return m, m.send(Controls.Stop)
		}
		m.quitting = true
		return m, tea.Quit
	case "+", "=":
		m.workers++
		n := m.workers
		return m, m.send(func(c Controls) { c.SetWorkers(n) })
	case "-", "_":
		if m.workers > 1 {
			m.workers--
			n := m.workers
			return m, m.send(func(c Controls) { c.SetWorkers(n) })
		}
	}
	return m, nil
}

func (m *ConvertModel) handleEvent(ev convert.Event) tea.Cmd {
	switch ev.Kind {
	case convert.EventScanStarted:
		m.phase = phaseScanning
		m.found, m.foundSize = 0, 0

	case convert.EventFileDiscovered:
		m.found, m.foundSize = ev.Count, ev.Bytes

	case convert.EventScanCompleted:
		m.found, m.foundSize = ev.Count, ev.Bytes
		m.agg = ev.Progress
		if ev.Count == 0 {
			m.message = "No FLAC files found"
			m.phase = phaseDone
			m.quitting = true
			return tea.Quit
		}
		return m.send(Controls.Start)

	case convert.EventScanError:
		m.message = ev.Message
		m.phase = phaseDone
		m.quitting = true
		return tea.Quit

	case convert.EventConversionStarted:
		m.phase = phaseConverting
		m.workers = ev.Count
		m.agg = ev.Progress

	case convert.EventStatusChanged:
		m.agg = ev.Progress
		if ev.Status == convert.StatusConverting {
			m.inFlight[ev.Path] = 0
			m.order = append(m.order, ev.Path)
			break
		}
		delete(m.inFlight, ev.Path)
		m.order = slices.DeleteFunc(m.order, func(p string) bool { return p == ev.Path })
		m.entries = append(m.entries, FileLogEntry{
			Name:    filepath.Base(ev.Path),
			Status:  ev.Status,
			Message: ev.Message,
		})
		items := make([]list.Item, len(m.entries))
		for i, entry := range m.entries {
			items[i] = entry
		}
		m.fileList.SetItems(items)
		m.fileList.Select(len(items) - 1)

	case convert.EventProgressChanged:
		if _, ok := m.inFlight[ev.Path]; ok {
			m.inFlight[ev.Path] = ev.Percent
		}

	case convert.EventWorkersChanged:
		m.workers = ev.Count

	case convert.EventRunCompleted, convert.EventRunStopped:
		m.agg = ev.Progress
		m.phase = phaseDone
		m.quitting = true
		return tea.Quit

	case convert.EventRunError:
		m.message = ev.Message
		m.phase = phaseDone
		m.quitting = true
		return tea.Quit
	}
	return nil
}

// Progress returns the last aggregate progress the TUI saw
func (m ConvertModel) Progress() convert.AggregateProgress { return m.agg }

// Message returns the error or notice that ended the session, if any
func (m ConvertModel) Message() string { return m.message }

// View implements tea.Model
func (m ConvertModel) View() string {
	if m.quitting {
		return ""
	}

	header := HeaderStyle.Render(fmt.Sprintf("flac2opus %s", m.Version))

	if m.phase == phaseScanning {
		return strings.Join([]string{
			header,
			ProcessingStyle.Render(fmt.Sprintf("🔍 Scanning %s", m.inputDir)),
			fmt.Sprintf("Found %d files (%s)", m.found, FormatBytes(m.foundSize)),
			MutedStyle.Render("Controls: [q] Cancel"),
		}, "\n\n")
	}

	a := m.agg
	overallView := fmt.Sprintf("Overall Progress: %s (%d/%d)",
		m.overallProgress.ViewAs(a.Overall), a.Finished(), a.Total)

	counts := strings.Join([]string{
		StatusStyle(convert.StatusCompleted).Render(fmt.Sprintf("✅ %d", a.Completed)),
		StatusStyle(convert.StatusFailed).Render(fmt.Sprintf("❌ %d", a.Failed)),
		StatusStyle(convert.StatusSkipped).Render(fmt.Sprintf("⏭️  %d", a.Skipped)),
		StatusStyle(convert.StatusCancelled).Render(fmt.Sprintf("⏹ %d", a.Cancelled)),
		StatusStyle(convert.StatusPending).Render(fmt.Sprintf("⏳ %d", a.Pending)),
	}, "  ")
	timing := MutedStyle.Render(fmt.Sprintf("Elapsed %s  Remaining %s  Workers %d",
		FormatDuration(a.Elapsed), FormatDuration(a.Remaining), m.workers))

	jobViews := []string{"Converting:"}
	for _, path := range m.order {
		jobViews = append(jobViews, fmt.Sprintf("%s %s",
			m.jobProgress.ViewAs(float64(m.inFlight[path])/100), filepath.Base(path)))
	}

	controls := "Controls: [q] Stop  [+/-] Workers"
	if m.stopping {
		controls = WarnStyle.Render("Stopping, waiting for running jobs... [q] Quit now")
	}

	return strings.Join([]string{
		header,
		overallView,
		counts + "\n" + timing,
		strings.Join(jobViews, "\n"),
		m.fileList.View(),
		MutedStyle.Render(controls),
	}, "\n\n")
}
