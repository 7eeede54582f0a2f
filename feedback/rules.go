package feedback

import (
	"math"
	"time"
)

// Rule names, also used as the Feedback.Rule value and as metric labels.
const (
	RuleWorkoutState    = "workout_state"
	RuleMinimumInterval = "minimum_interval"
	RuleInitialFeedback = "initial_feedback"
	RuleFirstKilometer  = "first_kilometer"
	RuleKilometer       = "kilometer"
	RulePaceChange      = "pace_change"
	RuleHeartRateChange = "heart_rate_change"
	RuleElevationChange = "elevation_change"
	RuleMaxTime         = "max_time"
)

// Thresholds parameterizes the canonical chain.
type Thresholds struct {
	// MinInterval is the minimum spacing between feedback. Zero disables the check.
	MinInterval time.Duration
	// InitialAfter is the session duration after which the first feedback fires.
	InitialAfter time.Duration
	// FirstKilometerM blocks distance-driven rules until this distance is covered.
	FirstKilometerM float64
	// KilometerWindowM is how far past a kilometre boundary the split still fires.
	KilometerWindowM float64
	// PaceChangeMinPerKm is the absolute 60s pace rate of change that fires.
	PaceChangeMinPerKm float64
	// HeartRateChangeBPM is the absolute 60s heart-rate rate of change that fires.
	HeartRateChangeBPM float64
	// GradePercent is the absolute 10s grade that fires.
	GradePercent float64
	// MaxInterval forces feedback when nothing has been said for this long.
	MaxInterval time.Duration
}

// DefaultThresholds returns the canonical values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinInterval:        30 * time.Second,
		InitialAfter:       30 * time.Second,
		FirstKilometerM:    1000,
		KilometerWindowM:   50,
		PaceChangeMinPerKm: 0.5,
		HeartRateChangeBPM: 5.0,
		GradePercent:       5.0,
		MaxInterval:        5 * time.Minute,
	}
}

// DefaultRules returns the canonical chain in priority order.
func DefaultRules(t Thresholds) []Rule {
	return []Rule{
		WorkoutStateRule{},
		MinimumIntervalRule{Interval: t.MinInterval},
		InitialFeedbackRule{After: t.InitialAfter},
		FirstKilometerRule{DistanceM: t.FirstKilometerM},
		KilometerRule{WindowM: t.KilometerWindowM},
		PaceChangeRule{Threshold: t.PaceChangeMinPerKm},
		HeartRateChangeRule{Threshold: t.HeartRateChangeBPM},
		ElevationChangeRule{Threshold: t.GradePercent},
		MaxTimeRule{Interval: t.MaxInterval},
	}
}

// WorkoutStateRule skips while the workout is inactive or a generation is pending.
type WorkoutStateRule struct{}

func (WorkoutStateRule) Name() string { return RuleWorkoutState }

func (WorkoutStateRule) Evaluate(in Input) Verdict {
	if !in.State.WorkoutActive || in.State.InFlight {
		return VerdictSkip
	}
	return VerdictNext
}

// MinimumIntervalRule skips when the last feedback is more recent than Interval.
type MinimumIntervalRule struct {
	Interval time.Duration
}

func (MinimumIntervalRule) Name() string { return RuleMinimumInterval }

func (r MinimumIntervalRule) Evaluate(in Input) Verdict {
	last := in.LastFeedback()
	if r.Interval <= 0 || last == nil {
		return VerdictNext
	}
	if in.Now.Sub(last.Timestamp) < r.Interval {
		return VerdictSkip
	}
	return VerdictNext
}

// InitialFeedbackRule fires once the session is older than After and nothing has been
// said yet.
type InitialFeedbackRule struct {
	After time.Duration
}

func (InitialFeedbackRule) Name() string { return RuleInitialFeedback }

func (r InitialFeedbackRule) Evaluate(in Input) Verdict {
	if len(in.History) == 0 && in.Aggregates.SessionDurationS > r.After.Seconds() {
		return VerdictTrigger
	}
	return VerdictNext
}

// FirstKilometerRule blocks every later rule until DistanceM has been covered.
type FirstKilometerRule struct {
	DistanceM float64
}

func (FirstKilometerRule) Name() string { return RuleFirstKilometer }

func (r FirstKilometerRule) Evaluate(in Input) Verdict {
	if latestDistance(in) < r.DistanceM {
		return VerdictSkip
	}
	return VerdictNext
}

// KilometerRule fires within WindowM past each kilometre boundary, once per kilometre.
type KilometerRule struct {
	WindowM float64
}

func (KilometerRule) Name() string { return RuleKilometer }

func (r KilometerRule) Evaluate(in Input) Verdict {
	distance := latestDistance(in)
	if math.Mod(distance, 1000) > r.WindowM {
		return VerdictNext
	}
	km := kilometerIndex(distance)
	for _, f := range in.History {
		if f.Rule == RuleKilometer && kilometerIndex(f.DistanceM) == km {
			return VerdictNext
		}
	}
	return VerdictTrigger
}

// PaceChangeRule fires when the 60s pace rate of change exceeds Threshold min/km.
type PaceChangeRule struct {
	Threshold float64
}

func (PaceChangeRule) Name() string { return RulePaceChange }

func (r PaceChangeRule) Evaluate(in Input) Verdict {
	return triggerAbove(in.Aggregates.PaceMinutesPerKm60sRateOfChange, r.Threshold)
}

// HeartRateChangeRule fires when the 60s heart-rate rate of change exceeds Threshold BPM.
type HeartRateChangeRule struct {
	Threshold float64
}

func (HeartRateChangeRule) Name() string { return RuleHeartRateChange }

func (r HeartRateChangeRule) Evaluate(in Input) Verdict {
	return triggerAbove(in.Aggregates.HeartRateBPM60sRateOfChange, r.Threshold)
}

// ElevationChangeRule fires on a steep 10s grade in either direction.
type ElevationChangeRule struct {
	Threshold float64
}

func (ElevationChangeRule) Name() string { return RuleElevationChange }

func (r ElevationChangeRule) Evaluate(in Input) Verdict {
	return triggerAbove(in.Aggregates.GradePercentage10sWindow, r.Threshold)
}

// MaxTimeRule fires when nothing has been said for longer than Interval, counting from
// session start before the first feedback.
type MaxTimeRule struct {
	Interval time.Duration
}

func (MaxTimeRule) Name() string { return RuleMaxTime }

func (r MaxTimeRule) Evaluate(in Input) Verdict {
	var since time.Time
	switch last := in.LastFeedback(); {
	case last != nil:
		since = last.Timestamp
	case in.Latest != nil:
		since = in.Latest.SessionStart
	}
	if since.IsZero() {
		return VerdictNext
	}
	if in.Now.Sub(since) > r.Interval {
		return VerdictTrigger
	}
	return VerdictNext
}

func triggerAbove(value, threshold float64) Verdict {
	if math.Abs(value) > threshold {
		return VerdictTrigger
	}
	return VerdictNext
}

func latestDistance(in Input) float64 {
	if in.Latest != nil {
		return in.Latest.DistanceM
	}
	return in.Aggregates.DistanceM
}

func kilometerIndex(distanceM float64) int {
	return int(math.Floor(distanceM / 1000))
}
