// Package metrics implements the streaming aggregation engine: time-bounded rolling
// windows, session-wide totals, cumulative-counter deltas and the Preprocessor that
// derives running metrics (pace, cadence, stride, grade, grade-adjusted pace) from
// raw sensor samples.
package metrics

import "time"

// Transform maps a value before it is stored by a window or total.
type Transform func(float64) float64

type windowEntry struct {
	ts    time.Time
	value float64
}

// RollingWindow keeps the values recorded within interval of the newest timestamp and
// maintains their running sum.
//
// A window may be linked to a previous window of the same length: every evicted entry
// is forwarded to it with its stored (already transformed) value, which yields two
// adjacent non-overlapping windows without duplicating history.
type RollingWindow struct {
	interval  time.Duration
	previous  *RollingWindow
	transform Transform

	entries []windowEntry
	head    int
	sum     float64
	// nonzero counts retained non-zero values. The sum is reset to exactly 0 whenever
	// it reaches zero, so add/subtract residue never outlives the values that caused it.
	nonzero int
}

// WindowOption configures a RollingWindow.
type WindowOption func(*RollingWindow)

// WithPrevious links the window that receives evicted entries. The caller owns both windows.
func WithPrevious(previous *RollingWindow) WindowOption {
	return func(w *RollingWindow) {
		w.previous = previous
	}
}

// WithTransform sets the function applied to incoming values before storage.
func WithTransform(transform Transform) WindowOption {
	return func(w *RollingWindow) {
		w.transform = transform
	}
}

// NewRollingWindow returns an empty window retaining interval worth of samples.
func NewRollingWindow(interval time.Duration, opts ...WindowOption) *RollingWindow {
	w := &RollingWindow{
		interval: interval,
		entries:  make([]windowEntry, 0, 64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Add evicts every entry at or before ts-interval (oldest first, forwarding to the
// previous window), then stores the transformed value at ts.
//
// Timestamps must be non-decreasing; an earlier timestamp is clamped to the newest
// stored one so the ordering holds.
func (w *RollingWindow) Add(value float64, ts time.Time) {
	if n := w.Len(); n > 0 {
		if newest := w.entries[len(w.entries)-1].ts; ts.Before(newest) {
			ts = newest
		}
	}

	cutoff := ts.Add(-w.interval)
	for w.head < len(w.entries) {
		oldest := w.entries[w.head]
		if oldest.ts.After(cutoff) {
			break
		}
		w.sum -= oldest.value
		if oldest.value != 0 {
			w.nonzero--
		}
		w.head++
		if w.previous != nil {
			w.previous.Add(oldest.value, oldest.ts)
		}
	}
	w.compact()

	if w.transform != nil {
		value = w.transform(value)
	}
	w.entries = append(w.entries, windowEntry{ts: ts, value: value})
	w.sum += value
	if value != 0 {
		w.nonzero++
	}
	if w.nonzero == 0 {
		w.sum = 0
	}
}

// compact drops evicted entries once they dominate the backing slice.
func (w *RollingWindow) compact() {
	if w.head == len(w.entries) {
		w.entries = w.entries[:0]
		w.head = 0
		w.sum = 0
		w.nonzero = 0
		return
	}
	if w.head > 32 && w.head*2 >= len(w.entries) {
		n := copy(w.entries, w.entries[w.head:])
		w.entries = w.entries[:n]
		w.head = 0
	}
}

// Sum returns the running sum of retained values.
func (w *RollingWindow) Sum() float64 {
	if w.Len() == 0 {
		return 0
	}
	return w.sum
}

// Average returns Sum/Len, or 0 for an empty window.
func (w *RollingWindow) Average() float64 {
	n := w.Len()
	if n == 0 {
		return 0
	}
	return w.sum / float64(n)
}

// Duration is the span between the oldest and newest retained timestamps.
func (w *RollingWindow) Duration() time.Duration {
	if w.Len() < 2 {
		return 0
	}
	return w.entries[len(w.entries)-1].ts.Sub(w.entries[w.head].ts)
}

// Len returns the number of retained entries.
func (w *RollingWindow) Len() int {
	return len(w.entries) - w.head
}

// Interval returns the retention interval.
func (w *RollingWindow) Interval() time.Duration {
	return w.interval
}

// RateOfChange returns current.Average() - previous.Average(), or 0 while previous is
// still empty.
func RateOfChange(current, previous *RollingWindow) float64 {
	if previous == nil || previous.Len() == 0 {
		return 0
	}
	return current.Average() - previous.Average()
}
