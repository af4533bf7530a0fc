package audio

// Progress bands of a single conversion, in percent
const (
	progressOpened  = 5
	progressDecoded = 50
	progressDone    = 100
)

// progressReporter forwards whole percentages to fn, dropping repeats and
// values lower than the last one reported
type progressReporter struct {
	fn   func(int)
	last int
}

func newProgressReporter(fn func(int)) *progressReporter {
	return &progressReporter{fn: fn, last: -1}
}

func (p *progressReporter) set(pct int) {
	pct = max(0, min(pct, progressDone))
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// decode maps a decoded fraction onto the decode band
func (p *progressReporter) decode(fraction float64) {
	p.set(progressOpened + int(fraction*float64(progressDecoded-progressOpened)))
}

// encode maps done of total frames onto the encode band
func (p *progressReporter) encode(done, total int) {
	if total <= 0 {
		p.set(progressDone)
		return
	}
	p.set(progressDecoded + done*(progressDone-progressDecoded)/total)
}
