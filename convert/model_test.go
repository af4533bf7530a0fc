package convert

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/flac2opus/audio"
)

func scanned(paths ...string) []audio.ScannedFile {
	var out []audio.ScannedFile
	for _, p := range paths {
		out = append(out, audio.ScannedFile{Path: "/in/" + p, RelPath: p, Size: 10})
	}
	return out
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name     string
		rel      string
		preserve bool
		want     string
	}{
		{"flat", "a.flac", true, "/out/a.opus"},
		{"nested preserved", "Artist/Album/01 Song.flac", true, "/out/Artist/Album/01 Song.opus"},
		{"nested flattened", "Artist/Album/01 Song.flac", false, "/out/01 Song.opus"},
		{"upper case extension", "b.FLAC", true, "/out/b.opus"},
		{"fla extension", "x/c.fla", true, "/out/x/c.opus"},
		{"dots in name", "d.e.flac", false, "/out/d.e.opus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPath("/out", filepath.FromSlash(tt.rel), tt.preserve)
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("OutputPath(%q, %v) = %q, want %q", tt.rel, tt.preserve, got, tt.want)
			}
		})
	}
}

func TestModelLoad(t *testing.T) {
	m := NewModel()
	n := m.Load(append(scanned("a.flac", "b.flac"), scanned("a.flac")...))
	if n != 2 || m.Len() != 2 {
		t.Fatalf("Load returned %d jobs, want 2", n)
	}
	if m.Count(StatusPending) != 2 {
		t.Errorf("pending = %d, want 2", m.Count(StatusPending))
	}
	if j, ok := m.Lookup("/in/b.flac"); !ok || j.RelPath != "b.flac" {
		t.Errorf("Lookup = %+v, %v", j, ok)
	}
	if _, ok := m.Lookup("/in/missing.flac"); ok {
		t.Error("Lookup found a missing job")
	}

	m.Load(nil)
	if m.Len() != 0 {
		t.Error("Load(nil) did not clear the model")
	}
}

func TestModelTransitions(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewModel()
	m.Load(scanned("a.flac", "b.flac", "c.flac"))

	if err := m.finish(0, StatusCompleted, "", now); err == nil {
		t.Error("pending job finished without starting")
	}
	if err := m.begin(0, now); err != nil {
		t.Fatal(err)
	}
	if err := m.begin(0, now); err == nil {
		t.Error("converting job started twice")
	}
	if err := m.finish(0, StatusConverting, "", now); err == nil {
		t.Error("finish accepted a non-terminal status")
	}
	if err := m.finish(0, StatusFailed, "boom", now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := m.finish(0, StatusCompleted, "", now); err == nil {
		t.Error("terminal job changed state")
	}

	j := m.Job(0)
	if j.Status != StatusFailed || j.Error != "boom" || j.Elapsed(now) != time.Second {
		t.Errorf("job = %+v", j)
	}
	if err := m.begin(5, now); err == nil {
		t.Error("out of range job started")
	}
}

func TestModelNextPendingIsFIFO(t *testing.T) {
	now := time.Now()
	m := NewModel()
	m.Load(scanned("a.flac", "b.flac", "c.flac"))

	for want := 0; want < 3; want++ {
		i := m.nextPending()
		if i != want {
			t.Fatalf("nextPending = %d, want %d", i, want)
		}
		if err := m.begin(i, now); err != nil {
			t.Fatal(err)
		}
	}
	if i := m.nextPending(); i != -1 {
		t.Errorf("nextPending = %d with nothing pending", i)
	}
}

func TestModelProgress(t *testing.T) {
	m := NewModel()
	m.Load(scanned("a.flac"))
	if m.setProgress(0, 10) {
		t.Error("progress recorded for a pending job")
	}
	m.begin(0, time.Now())
	steps := []struct {
		pct  int
		want bool
	}{{10, true}, {10, false}, {5, false}, {60, true}, {150, true}}
	for _, s := range steps {
		if got := m.setProgress(0, s.pct); got != s.want {
			t.Errorf("setProgress(%d) = %v, want %v", s.pct, got, s.want)
		}
	}
	if p := m.Job(0).Progress; p != 100 {
		t.Errorf("progress = %d, want clamp to 100", p)
	}
}

func TestSummarize(t *testing.T) {
	start := time.Unix(0, 0)
	now := start.Add(10 * time.Second)
	jobs := []Job{
		{InputPath: "a", Status: StatusCompleted},
		{InputPath: "b", Status: StatusConverting, Progress: 50},
		{InputPath: "c", Status: StatusPending},
		{InputPath: "d", Status: StatusPending},
	}

	a := Summarize(jobs, start, time.Time{}, now)
	if a.Total != 4 || a.Completed != 1 || a.Converting != 1 || a.Pending != 2 {
		t.Errorf("counts = %+v", a)
	}
	if a.Overall != 0.25 {
		t.Errorf("overall = %v, want 0.25", a.Overall)
	}
	if len(a.InFlight) != 1 || a.InFlight[0] != "b" {
		t.Errorf("in flight = %v", a.InFlight)
	}
	if a.Elapsed != 10*time.Second {
		t.Errorf("elapsed = %v", a.Elapsed)
	}
	// 1.5 jobs done in 10s, 2.5 to go
	ten := float64(10 * time.Second)
	want := time.Duration(ten * 2.5 / 1.5)
	if d := a.Remaining - want; d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("remaining = %v, want about %v", a.Remaining, want)
	}

	idle := Summarize([]Job{{Status: StatusPending}}, start, time.Time{}, now)
	if idle.Remaining != 0 {
		t.Errorf("remaining with no work done = %v, want unknown (0)", idle.Remaining)
	}

	ended := Summarize([]Job{{Status: StatusFailed}, {Status: StatusSkipped}, {Status: StatusCancelled}}, start, start.Add(time.Second), now)
	if ended.Elapsed != time.Second || ended.Remaining != 0 || !ended.Done() || ended.Finished() != 3 {
		t.Errorf("finished run = %+v", ended)
	}

	if empty := Summarize(nil, time.Time{}, time.Time{}, now); empty.Overall != 0 || !empty.Done() {
		t.Errorf("empty = %+v", empty)
	}
}
