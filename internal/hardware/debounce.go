package hardware

import "time"

// Debouncer reports a switch level only after it has been stable for the
// configured window.
type Debouncer struct {
	src    Switch
	window time.Duration
	now    func() time.Time

	primed    bool
	stable    bool
	candidate bool
	since     time.Time
}

func NewDebouncer(src Switch, window time.Duration, now func() time.Time) *Debouncer {
	return &Debouncer{src: src, window: window, now: now}
}

func (d *Debouncer) Closed() (bool, error) {
	raw, err := d.src.Closed()
	if err != nil {
		return d.stable, err
	}
	t := d.now()
	if !d.primed {
		d.primed = true
		d.stable, d.candidate, d.since = raw, raw, t
		return d.stable, nil
	}
	if raw != d.candidate {
		d.candidate, d.since = raw, t
	}
	if d.candidate != d.stable && t.Sub(d.since) >= d.window {
		d.stable = d.candidate
	}
	return d.stable, nil
}
