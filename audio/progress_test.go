package audio

import (
	"reflect"
	"testing"
)

func TestProgressReporter(t *testing.T) {
	var got []int
	p := newProgressReporter(func(pct int) { got = append(got, pct) })

	p.set(0)
	p.set(0)
	p.decode(0)
	p.decode(0.5)
	p.decode(0.5)
	p.set(3) // lower than reported, dropped
	p.decode(1)
	p.encode(1, 4)
	p.encode(4, 4)
	p.set(150)

	want := []int{0, 5, 27, 50, 62, 100}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("reported %v, want %v", got, want)
	}
}

func TestProgressReporterNilCallback(t *testing.T) {
	p := newProgressReporter(nil)
	p.set(10)
	p.encode(0, 0)
}
