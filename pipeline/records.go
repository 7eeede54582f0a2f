package pipeline

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/fit-coach/metrics"
)

// decodeActivity reads a FIT activity file.
func decodeActivity(r io.Reader) (*fit.ActivityFile, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity accessor: %w", err)
	}
	return activity, nil
}

// samplesFromActivity converts record messages into the engine's sample shape.
//
// The FIT record carries no step counter, so steps are integrated from running cadence
// (strides per minute, two steps per stride). Elevation is made relative to the first
// valid altitude. Active energy is spread over the session in proportion to elapsed
// time, since records carry only the session total.
func samplesFromActivity(activity *fit.ActivityFile) []metrics.RawSample {
	if activity == nil || len(activity.Records) == 0 {
		return nil
	}

	var start time.Time
	for _, s := range activity.Sessions {
		if t := validTimeOrZero(s.StartTime); !t.IsZero() {
			start = t
			break
		}
	}
	for _, rec := range activity.Records {
		if t := validTimeOrZero(rec.Timestamp); !t.IsZero() {
			if start.IsZero() || t.Before(start) {
				start = t
			}
			break
		}
	}
	if start.IsZero() {
		return nil
	}

	totalKcal, totalS := sessionEnergy(activity)

	out := make([]metrics.RawSample, 0, len(activity.Records))
	var (
		prevTS       time.Time
		steps        float64
		distance     float64
		elevation    float64
		baseAltitude float64
		haveAltitude bool
	)
	for _, rec := range activity.Records {
		ts := validTimeOrZero(rec.Timestamp)
		if ts.IsZero() {
			continue
		}

		if cadence, ok := extractCadence(rec); ok && !prevTS.IsZero() {
			dt := ts.Sub(prevTS).Seconds()
			if dt > 0 && dt < 60 {
				steps += cadence * 2 * dt / 60.0
			}
		}
		prevTS = ts

		if d := rec.GetDistanceScaled(); isFinite(d) && d >= distance {
			distance = d
		}
		if alt, ok := extractAltitude(rec); ok {
			if !haveAltitude {
				baseAltitude = alt
				haveAltitude = true
			}
			elevation = alt - baseAltitude
		}

		sample := metrics.RawSample{
			DistanceM:    distance,
			StepCount:    math.Round(steps),
			ElevationM:   elevation,
			Timestamp:    ts,
			SessionStart: start,
		}
		if hr, ok := extractHeartRate(rec); ok {
			sample.HeartRateBPM = hr
		}
		if p, ok := extractPower(rec); ok {
			sample.PowerW = p
		}
		if v, ok := extractSpeed(rec); ok {
			sample.SpeedMPS = v
		}
		if totalS > 0 {
			sample.ActiveEnergyKcal = totalKcal * math.Min(1, ts.Sub(start).Seconds()/totalS)
		}
		out = append(out, sample)
	}
	return out
}

func sessionEnergy(activity *fit.ActivityFile) (kcal, seconds float64) {
	for _, s := range activity.Sessions {
		kcal += float64(validUint16(s.TotalCalories))
		seconds += safePositive(s.GetTotalElapsedTimeScaled())
	}
	return kcal, seconds
}

func extractPower(rec *fit.RecordMsg) (float64, bool) {
	if rec.Power == math.MaxUint16 {
		return 0, false
	}
	return float64(rec.Power), true
}

func extractHeartRate(rec *fit.RecordMsg) (float64, bool) {
	if rec.HeartRate == math.MaxUint8 {
		return 0, false
	}
	return float64(rec.HeartRate), true
}

func extractCadence(rec *fit.RecordMsg) (float64, bool) {
	cad256 := safePositive(rec.GetCadence256Scaled())
	if cad256 > 0 {
		return cad256, true
	}
	if rec.Cadence == math.MaxUint8 {
		return 0, false
	}
	return float64(rec.Cadence), true
}

func extractSpeed(rec *fit.RecordMsg) (float64, bool) {
	speed := rec.GetEnhancedSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	speed = rec.GetSpeedScaled()
	if isFinite(speed) && speed >= 0 {
		return speed, true
	}
	return 0, false
}

func extractAltitude(rec *fit.RecordMsg) (float64, bool) {
	alt := rec.GetEnhancedAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	alt = rec.GetAltitudeScaled()
	if isFinite(alt) {
		return alt, true
	}
	return 0, false
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

func validUint16(v uint16) uint16 {
	if v == math.MaxUint16 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}
