package metrics

import "time"

// RawSample is one sensor tick. Counters (distance, steps, energy) are cumulative for
// the session; Elevation is relative to the session-start reference.
type RawSample struct {
	HeartRateBPM     float64   `json:"heart_rate_bpm"`
	DistanceM        float64   `json:"distance_m"`
	StepCount        float64   `json:"step_count"`
	ActiveEnergyKcal float64   `json:"active_energy_kcal"`
	ElevationM       float64   `json:"elevation_m"`
	PowerW           float64   `json:"power_w"`
	SpeedMPS         float64   `json:"speed_mps"`
	Timestamp        time.Time `json:"timestamp"`
	SessionStart     time.Time `json:"session_start"`
}

// SampleMessage is the wire form of a sample. Every field is optional.
type SampleMessage struct {
	HeartRate    *float64   `json:"heart_rate,omitempty"`
	Distance     *float64   `json:"distance,omitempty"`
	StepCount    *float64   `json:"step_count,omitempty"`
	ActiveEnergy *float64   `json:"active_energy,omitempty"`
	Elevation    *float64   `json:"elevation,omitempty"`
	Power        *float64   `json:"power,omitempty"`
	Speed        *float64   `json:"speed,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	SessionStart *time.Time `json:"session_start,omitempty"`
}

// Normalize applies the defaulting rules: missing or non-finite values become 0, and
// rates and counters are clamped at 0. Elevation keeps its sign.
func (m SampleMessage) Normalize() RawSample {
	s := RawSample{
		HeartRateBPM:     positiveOnly(floatOrZero(m.HeartRate)),
		DistanceM:        positiveOnly(floatOrZero(m.Distance)),
		StepCount:        positiveOnly(floatOrZero(m.StepCount)),
		ActiveEnergyKcal: positiveOnly(floatOrZero(m.ActiveEnergy)),
		ElevationM:       floatOrZero(m.Elevation),
		PowerW:           positiveOnly(floatOrZero(m.Power)),
		SpeedMPS:         positiveOnly(floatOrZero(m.Speed)),
	}
	if m.Timestamp != nil {
		s.Timestamp = *m.Timestamp
	}
	if m.SessionStart != nil {
		s.SessionStart = *m.SessionStart
	}
	return s
}

func floatOrZero(v *float64) float64 {
	if v == nil || !isFinite(*v) {
		return 0
	}
	return *v
}

// sanitize applies the same rules to an already-typed sample.
func sanitize(s RawSample) RawSample {
	clean := func(v float64) float64 {
		if !isFinite(v) {
			return 0
		}
		return v
	}
	s.HeartRateBPM = positiveOnly(clean(s.HeartRateBPM))
	s.DistanceM = positiveOnly(clean(s.DistanceM))
	s.StepCount = positiveOnly(clean(s.StepCount))
	s.ActiveEnergyKcal = positiveOnly(clean(s.ActiveEnergyKcal))
	s.ElevationM = clean(s.ElevationM)
	s.PowerW = positiveOnly(clean(s.PowerW))
	s.SpeedMPS = positiveOnly(clean(s.SpeedMPS))
	return s
}
