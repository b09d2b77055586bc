package reminder

import "time"

// Window is the half-open interval (Start, End] of fire instants that are
// due at one tick.
type Window struct {
	Start time.Time
	End   time.Time
}

// DueWindow returns the window for a tick at t. The tick is snapped to the
// nearest multiple of interval so that cron jitter, in either direction,
// lands every fire instant in exactly one window. catchUp widens the window
// backwards by that many extra intervals.
func DueWindow(t time.Time, interval time.Duration, catchUp int) Window {
	if catchUp < 0 {
		catchUp = 0
	}
	slot := t.Round(interval)
	return Window{
		Start: slot.Add(-interval * time.Duration(1+catchUp)),
		End:   slot,
	}
}

// Contains reports whether t falls inside (Start, End].
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && !t.After(w.End)
}
