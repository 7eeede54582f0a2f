package metrics

import (
	"math"
	"sync"
	"time"
)

const (
	shortWindow     = 30 * time.Second
	longWindow      = 60 * time.Second
	gradeWindow     = 10 * time.Second
	smoothingWindow = 3 * time.Second
)

// accumulators holds every per-session window, total and delta tracker.
type accumulators struct {
	power30      *RollingWindow
	power60      *RollingWindow
	powerSession *SessionTotal

	pace30      *RollingWindow
	pace60Prev  *RollingWindow
	pace60      *RollingWindow
	paceSession *SessionTotal

	hr30      *RollingWindow
	hr60Prev  *RollingWindow
	hr60      *RollingWindow
	hrSession *SessionTotal

	stepDelta DeltaTracker
	steps30   *RollingWindow
	steps60   *RollingWindow

	distanceDelta DeltaTracker
	distance30    *RollingWindow
	distance10    *RollingWindow

	elevationDelta DeltaTracker
	elevation10    *RollingWindow

	elevation3s          *RollingWindow
	smoothedDelta        DeltaTracker
	elevationGainSession *SessionTotal
	elevationGain30      *RollingWindow

	gap60 *RollingWindow
}

func newAccumulators() *accumulators {
	pace := WithTransform(SpeedToPaceMinutesPerKm)
	a := &accumulators{
		power30:      NewRollingWindow(shortWindow),
		power60:      NewRollingWindow(longWindow),
		powerSession: NewSessionTotal(nil),

		pace30:      NewRollingWindow(shortWindow, pace),
		pace60Prev:  NewRollingWindow(longWindow),
		paceSession: NewSessionTotal(SpeedToPaceMinutesPerKm),

		hr30:      NewRollingWindow(shortWindow),
		hr60Prev:  NewRollingWindow(longWindow),
		hrSession: NewSessionTotal(nil),

		steps30: NewRollingWindow(shortWindow),
		steps60: NewRollingWindow(longWindow),

		distance30: NewRollingWindow(shortWindow),
		distance10: NewRollingWindow(gradeWindow),

		elevation10: NewRollingWindow(gradeWindow),

		elevation3s:          NewRollingWindow(smoothingWindow),
		elevationGainSession: NewSessionTotal(nil),
		elevationGain30:      NewRollingWindow(shortWindow),

		gap60: NewRollingWindow(longWindow),
	}
	// Previous windows store forwarded values verbatim; they carry no transform.
	a.pace60 = NewRollingWindow(longWindow, pace, WithPrevious(a.pace60Prev))
	a.hr60 = NewRollingWindow(longWindow, WithPrevious(a.hr60Prev))
	return a
}

// Preprocessor owns all accumulators for one session and derives Aggregates from them.
// A single mutex serializes AddMetrics against readers, so Aggregates never observes a
// half-applied sample.
type Preprocessor struct {
	mu   sync.Mutex
	acc  *accumulators
	last *RawSample
}

// NewPreprocessor returns a Preprocessor with fresh accumulators.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{acc: newAccumulators()}
}

// AddMessage normalizes a wire sample and adds it.
func (p *Preprocessor) AddMessage(msg SampleMessage) {
	p.AddMetrics(msg.Normalize())
}

// AddMetrics feeds one sample into every accumulator.
func (p *Preprocessor) AddMetrics(sample RawSample) {
	sample = sanitize(sample)

	p.mu.Lock()
	defer p.mu.Unlock()

	last := sample
	p.last = &last

	a := p.acc
	ts := sample.Timestamp

	a.power30.Add(sample.PowerW, ts)
	a.power60.Add(sample.PowerW, ts)
	a.powerSession.Add(sample.PowerW)

	a.pace30.Add(sample.SpeedMPS, ts)
	a.pace60.Add(sample.SpeedMPS, ts)
	a.paceSession.Add(sample.SpeedMPS)

	a.hr30.Add(sample.HeartRateBPM, ts)
	a.hr60.Add(sample.HeartRateBPM, ts)
	a.hrSession.Add(sample.HeartRateBPM)

	steps := a.stepDelta.Delta(sample.StepCount)
	a.steps30.Add(steps, ts)
	a.steps60.Add(steps, ts)

	distance := a.distanceDelta.Delta(sample.DistanceM)
	a.distance30.Add(distance, ts)
	a.distance10.Add(distance, ts)

	// Gain only counts uphill movement of the smoothed elevation.
	a.elevation3s.Add(sample.ElevationM, ts)
	gain := math.Max(0, a.smoothedDelta.Delta(a.elevation3s.Average()))
	a.elevationGainSession.Add(gain)
	a.elevationGain30.Add(gain, ts)

	a.elevation10.Add(a.elevationDelta.Delta(sample.ElevationM), ts)
	grade := GradePercent(a.elevation10.Sum(), a.distance10.Sum())
	a.gap60.Add(GradeAdjustedPace(SpeedToPaceMinutesPerKm(sample.SpeedMPS), grade), ts)
}

// Aggregates recomputes the snapshot from current state. It does not mutate anything.
func (p *Preprocessor) Aggregates() Aggregates {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.acc
	agg := Aggregates{
		PowerW30sWindowAverage: a.power30.Average(),
		PowerW60sWindowAverage: a.power60.Average(),
		PowerWSessionAverage:   a.powerSession.Average(),

		PaceMinutesPerKm30sWindowAverage: a.pace30.Average(),
		PaceMinutesPerKm60sWindowAverage: a.pace60.Average(),
		PaceMinutesPerKmSessionAverage:   a.paceSession.Average(),
		PaceMinutesPerKm60sRateOfChange:  RateOfChange(a.pace60, a.pace60Prev),

		HeartRateBPM30sWindowAverage: a.hr30.Average(),
		HeartRateBPM60sWindowAverage: a.hr60.Average(),
		HeartRateBPMSessionAverage:   a.hrSession.Average(),
		HeartRateBPM60sRateOfChange:  RateOfChange(a.hr60, a.hr60Prev),
		HeartRateBPMSessionMin:       a.hrSession.Min(),
		HeartRateBPMSessionMax:       a.hrSession.Max(),

		CadenceSPM30sWindow: Cadence(a.steps30.Sum(), a.steps30.Duration()),
		CadenceSPM60sWindow: Cadence(a.steps60.Sum(), a.steps60.Duration()),

		StrideLengthM: StrideLength(a.distance30.Sum(), a.steps30.Sum()),

		ElevationGainSessionM:    a.elevationGainSession.Sum(),
		ElevationGain30sWindowM:  a.elevationGain30.Sum(),
		GradePercentage10sWindow: GradePercent(a.elevation10.Sum(), a.distance10.Sum()),

		GradeAdjustedPace60sWindowAverage: a.gap60.Average(),
	}
	if p.last != nil {
		agg.SessionDurationS = sessionDuration(p.last)
		agg.DistanceM = p.last.DistanceM
		agg.ActiveEnergyKcal = p.last.ActiveEnergyKcal
	}
	return agg
}

// LatestMetrics returns a copy of the most recent sample, or nil before the first one.
func (p *Preprocessor) LatestMetrics() *RawSample {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return nil
	}
	latest := *p.last
	return &latest
}

// Clear replaces every accumulator and forgets the latest sample.
func (p *Preprocessor) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.acc = newAccumulators()
	p.last = nil
}

func sessionDuration(s *RawSample) float64 {
	if s.SessionStart.IsZero() || s.Timestamp.IsZero() {
		return 0
	}
	d := s.Timestamp.Sub(s.SessionStart).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
