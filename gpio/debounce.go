package gpio

import "time"

// debouncer holds the debounce state of one input line.  It is owned by the
// line's worker goroutine and never shared.
//
// A level different from the stable one becomes a candidate; the candidate
// is accepted once it has been observed for the whole window without the
// line returning to the stable level.
type debouncer struct {
	window time.Duration

	stable     Level
	lastChange time.Time

	pending   bool
	candidate Level
	since     time.Time
}

func newDebouncer(window time.Duration, initial Level, now time.Time) *debouncer {
	return &debouncer{window: window, stable: initial, lastChange: now}
}

// observe feeds one raw sample taken at now.  It returns true when the
// sample completes a stable transition to level.  bounced is true when a
// pending candidate was abandoned because the line went back.
func (d *debouncer) observe(raw Level, now time.Time) (level Level, changed, bounced bool) {
	if raw == d.stable {
		if d.pending {
			d.pending = false
			return d.stable, false, true
		}
		return d.stable, false, false
	}
	if !d.pending || d.candidate != raw {
		d.pending = true
		d.candidate = raw
		d.since = now
	}
	if now.Sub(d.since) >= d.window {
		d.stable = raw
		d.lastChange = now
		d.pending = false
		return raw, true, false
	}
	return d.stable, false, false
}

// settleIn returns how long until the pending candidate would be accepted,
// or false if nothing is pending.
func (d *debouncer) settleIn(now time.Time) (time.Duration, bool) {
	if !d.pending {
		return 0, false
	}
	left := d.since.Add(d.window).Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}
