package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/flac2opus/convert"
)

type fakeControls struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeControls) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeControls) Scan(dir string)  { f.record("scan " + dir) }
func (f *fakeControls) StopScan()        { f.record("stopscan") }
func (f *fakeControls) Start()           { f.record("start") }
func (f *fakeControls) Stop()            { f.record("stop") }
func (f *fakeControls) SetWorkers(n int) { f.record("workers " + strings.Repeat("+", n)) }

func newTestModel() (ConvertModel, *fakeControls) {
	fc := &fakeControls{}
	events := make(chan convert.Event)
	return NewConvertModel(fc, events, "/music", 2, "test"), fc
}

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConvertModelScanStartsRun(t *testing.T) {
	m, fc := newTestModel()

	m.handleEvent(convert.Event{Kind: convert.EventScanStarted})
	m.handleEvent(convert.Event{Kind: convert.EventFileDiscovered, Path: "/music/a.flac", Count: 1, Bytes: 2048})
	if m.found != 1 || !strings.Contains(m.View(), "2.0 KiB") {
		t.Errorf("scan view = %q", m.View())
	}

	cmd := m.handleEvent(convert.Event{Kind: convert.EventScanCompleted, Count: 1, Bytes: 2048})
	if cmd == nil {
		t.Fatal("scan completion returned no command")
	}
	cmd()
	if len(fc.calls) != 1 || fc.calls[0] != "start" {
		t.Errorf("calls = %v, want [start]", fc.calls)
	}
}

func TestConvertModelNoFiles(t *testing.T) {
	m, fc := newTestModel()
	m.handleEvent(convert.Event{Kind: convert.EventScanCompleted})
	if !m.quitting || m.Message() != "No FLAC files found" {
		t.Errorf("quitting=%v message=%q", m.quitting, m.Message())
	}
	if len(fc.calls) != 0 {
		t.Errorf("calls = %v", fc.calls)
	}
}

func TestConvertModelTracksJobs(t *testing.T) {
	m, _ := newTestModel()
	m.handleEvent(convert.Event{Kind: convert.EventConversionStarted, Count: 2, Progress: convert.AggregateProgress{Total: 2, Pending: 2}})
	m.handleEvent(convert.Event{Kind: convert.EventStatusChanged, Path: "/music/a.flac", Status: convert.StatusConverting})
	m.handleEvent(convert.Event{Kind: convert.EventStatusChanged, Path: "/music/b.flac", Status: convert.StatusConverting})
	m.handleEvent(convert.Event{Kind: convert.EventProgressChanged, Path: "/music/a.flac", Percent: 40})

	if m.inFlight["/music/a.flac"] != 40 || len(m.order) != 2 {
		t.Errorf("in flight = %v order = %v", m.inFlight, m.order)
	}

	m.handleEvent(convert.Event{
		Kind:     convert.EventStatusChanged,
		Path:     "/music/a.flac",
		Status:   convert.StatusFailed,
		Message:  "decode: bad frame",
		Progress: convert.AggregateProgress{Total: 2, Converting: 1, Failed: 1, Overall: 0.5, Elapsed: 3 * time.Second},
	})
	if _, ok := m.inFlight["/music/a.flac"]; ok || len(m.order) != 1 {
		t.Errorf("finished job still in flight: %v", m.order)
	}
	if len(m.entries) != 1 || !strings.Contains(m.entries[0].Description(), "bad frame") {
		t.Errorf("entries = %+v", m.entries)
	}

	view := m.View()
	for _, want := range []string{"(1/2)", "b.flac", "Elapsed 3s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	cmd := m.handleEvent(convert.Event{Kind: convert.EventRunCompleted, Progress: convert.AggregateProgress{Total: 2, Completed: 1, Failed: 1, Overall: 1}})
	if cmd == nil || !m.quitting || m.Progress().Completed != 1 {
		t.Errorf("run completion: quitting=%v progress=%+v", m.quitting, m.Progress())
	}
}

func TestConvertModelKeys(t *testing.T) {
	m, fc := newTestModel()
	m.handleEvent(convert.Event{Kind: convert.EventConversionStarted, Count: 2})

	next, cmd := m.Update(key("+"))
	m = next.(ConvertModel)
	cmd()
	if m.workers != 3 {
		t.Errorf("workers = %d, want 3", m.workers)
	}

	next, _ = m.Update(key("-"))
	m = next.(ConvertModel)
	next, _ = m.Update(key("-"))
	m = next.(ConvertModel)
	if next, cmd = m.Update(key("-")); cmd != nil {
		t.Error("workers dropped below one")
	}
	m = next.(ConvertModel)

	next, cmd = m.Update(key("q"))
	m = next.(ConvertModel)
	cmd()
	if !m.stopping || m.quitting {
		t.Errorf("first q: stopping=%v quitting=%v", m.stopping, m.quitting)
	}
	if !strings.Contains(m.View(), "Stopping") {
		t.Error("view does not show stopping")
	}

	next, _ = m.Update(key("ctrl+c"))
	if !next.(ConvertModel).quitting {
		t.Error("second q did not quit")
	}

	want := []string{"workers +++", "stop"}
	if strings.Join(fc.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", fc.calls, want)
	}
}

func TestConvertModelScanErrorQuits(t *testing.T) {
	m, _ := newTestModel()
	cmd := m.handleEvent(convert.Event{Kind: convert.EventScanError, Message: "permission denied"})
	if cmd == nil || !m.quitting || m.Message() != "permission denied" {
		t.Errorf("quitting=%v message=%q", m.quitting, m.Message())
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatBytes(512), "512 B"},
		{FormatBytes(1536), "1.5 KiB"},
		{FormatBytes(5 * 1024 * 1024 * 1024), "5.0 GiB"},
		{FormatDuration(0), "--"},
		{FormatDuration(4 * time.Second), "4s"},
		{FormatDuration(2*time.Minute + 3*time.Second), "2m03s"},
		{FormatDuration(time.Hour + 2*time.Minute + 3*time.Second), "1h02m03s"},
		{FormatBitrate(128000), "128 kbps"},
		{FormatBitrate(96500), "96.5 kbps"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
