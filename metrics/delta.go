package metrics

// DeltaTracker converts a cumulative counter into per-tick increments.
// The baseline starts at zero, so the first Delta returns the value itself.
type DeltaTracker struct {
	previous float64
}

// Delta returns value minus the previously seen value and records value as the new baseline.
func (d *DeltaTracker) Delta(value float64) float64 {
	delta := value - d.previous
	d.previous = value
	return delta
}

// Reset sets the baseline back to zero.
func (d *DeltaTracker) Reset() {
	d.previous = 0
}
