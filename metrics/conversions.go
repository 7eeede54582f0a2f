package metrics

import (
	"math"
	"time"
)

// SpeedToPaceMinutesPerKm converts m/s to minutes per kilometre. Pace is undefined at
// rest, so zero or negative speed reports 0.
func SpeedToPaceMinutesPerKm(speedMPS float64) float64 {
	if !isFinite(speedMPS) || speedMPS <= 0 {
		return 0
	}
	return 1000.0 / speedMPS / 60.0
}

// Cadence converts a step count over a window span into steps per minute.
func Cadence(steps float64, span time.Duration) float64 {
	seconds := span.Seconds()
	if seconds <= 0 {
		return 0
	}
	return steps * 60.0 / seconds
}

// minDenominator is the magnitude below which a window sum is treated as zero.
const minDenominator = 1e-9

// StrideLength is metres per step over the same window.
func StrideLength(distanceM, steps float64) float64 {
	if math.Abs(steps) < minDenominator {
		return 0
	}
	return distanceM / steps
}

// GradePercent is rise over run as a percentage, or 0 with no horizontal distance.
func GradePercent(elevationDeltaM, distanceDeltaM float64) float64 {
	if math.Abs(distanceDeltaM) < minDenominator {
		return 0
	}
	return elevationDeltaM / distanceDeltaM * 100.0
}

// GradeAdjustmentFactor is the empirical pace multiplier for a grade in percent.
func GradeAdjustmentFactor(grade float64) float64 {
	switch {
	case grade > 0:
		return 1.0 + 0.03*grade + 0.0005*grade*grade
	case grade < 0:
		return 1.0 + 0.02*grade + 0.0003*grade*grade
	default:
		return 1.0
	}
}

// GradeAdjustedPace scales pace by GradeAdjustmentFactor.
func GradeAdjustedPace(pace, grade float64) float64 {
	return pace * GradeAdjustmentFactor(grade)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positiveOnly(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
