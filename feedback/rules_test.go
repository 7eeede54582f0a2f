package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lucasjlepore/fit-coach/metrics"
)

var sessionStart = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

func inputAt(elapsed time.Duration, distance float64) Input {
	now := sessionStart.Add(elapsed)
	return Input{
		Now: now,
		Aggregates: metrics.Aggregates{
			SessionDurationS: elapsed.Seconds(),
			DistanceM:        distance,
		},
		Latest: &metrics.RawSample{
			DistanceM:    distance,
			Timestamp:    now,
			SessionStart: sessionStart,
		},
		State: State{WorkoutActive: true},
	}
}

func TestWorkoutStateRule(t *testing.T) {
	r := WorkoutStateRule{}

	assert.Equal(t, VerdictNext, r.Evaluate(Input{State: State{WorkoutActive: true}}))
	assert.Equal(t, VerdictSkip, r.Evaluate(Input{State: State{WorkoutActive: false}}))
	assert.Equal(t, VerdictSkip, r.Evaluate(Input{State: State{WorkoutActive: true, InFlight: true}}))
}

func TestMinimumIntervalRule(t *testing.T) {
	in := inputAt(2*time.Minute, 500)
	in.History = []Feedback{{Timestamp: in.Now.Add(-10 * time.Second)}}

	assert.Equal(t, VerdictSkip, MinimumIntervalRule{Interval: 30 * time.Second}.Evaluate(in))
	assert.Equal(t, VerdictNext, MinimumIntervalRule{Interval: 5 * time.Second}.Evaluate(in))
	assert.Equal(t, VerdictNext, MinimumIntervalRule{}.Evaluate(in), "zero interval disables the rule")
	assert.Equal(t, VerdictNext, MinimumIntervalRule{Interval: time.Hour}.Evaluate(inputAt(time.Minute, 0)))
}

func TestInitialFeedbackRule(t *testing.T) {
	r := InitialFeedbackRule{After: 30 * time.Second}

	assert.Equal(t, VerdictNext, r.Evaluate(inputAt(30*time.Second, 0)))
	assert.Equal(t, VerdictTrigger, r.Evaluate(inputAt(31*time.Second, 0)))

	in := inputAt(time.Minute, 0)
	in.History = []Feedback{{Rule: RuleInitialFeedback}}
	assert.Equal(t, VerdictNext, r.Evaluate(in))
}

func TestFirstKilometerRule(t *testing.T) {
	r := FirstKilometerRule{DistanceM: 1000}

	assert.Equal(t, VerdictSkip, r.Evaluate(inputAt(time.Minute, 999.9)))
	assert.Equal(t, VerdictNext, r.Evaluate(inputAt(time.Minute, 1000)))
}

func TestKilometerRule(t *testing.T) {
	r := KilometerRule{WindowM: 50}

	first := inputAt(time.Minute, 25)
	assert.Equal(t, VerdictTrigger, r.Evaluate(first))

	same := inputAt(2*time.Minute, 200)
	same.History = []Feedback{{Rule: RuleKilometer, DistanceM: 25}}
	assert.Equal(t, VerdictNext, r.Evaluate(same))

	repeat := inputAt(2*time.Minute, 40)
	repeat.History = same.History
	assert.Equal(t, VerdictNext, r.Evaluate(repeat), "one split per kilometre")

	next := inputAt(5*time.Minute, 1030)
	next.History = same.History
	assert.Equal(t, VerdictTrigger, r.Evaluate(next))

	assert.Equal(t, VerdictTrigger, r.Evaluate(inputAt(5*time.Minute, 2050)))
	assert.Equal(t, VerdictNext, r.Evaluate(inputAt(5*time.Minute, 2051)))
}

func TestChangeRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		agg  metrics.Aggregates
		want Verdict
	}{
		{"pace slower", PaceChangeRule{Threshold: 0.5}, metrics.Aggregates{PaceMinutesPerKm60sRateOfChange: 0.6}, VerdictTrigger},
		{"pace faster", PaceChangeRule{Threshold: 0.5}, metrics.Aggregates{PaceMinutesPerKm60sRateOfChange: -0.51}, VerdictTrigger},
		{"pace steady", PaceChangeRule{Threshold: 0.5}, metrics.Aggregates{PaceMinutesPerKm60sRateOfChange: 0.5}, VerdictNext},
		{"heart rate up", HeartRateChangeRule{Threshold: 5}, metrics.Aggregates{HeartRateBPM60sRateOfChange: 5.1}, VerdictTrigger},
		{"heart rate down", HeartRateChangeRule{Threshold: 5}, metrics.Aggregates{HeartRateBPM60sRateOfChange: -7}, VerdictTrigger},
		{"heart rate steady", HeartRateChangeRule{Threshold: 5}, metrics.Aggregates{HeartRateBPM60sRateOfChange: 4.9}, VerdictNext},
		{"climb", ElevationChangeRule{Threshold: 5}, metrics.Aggregates{GradePercentage10sWindow: 6}, VerdictTrigger},
		{"descent", ElevationChangeRule{Threshold: 5}, metrics.Aggregates{GradePercentage10sWindow: -8}, VerdictTrigger},
		{"flat", ElevationChangeRule{Threshold: 5}, metrics.Aggregates{GradePercentage10sWindow: 2}, VerdictNext},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Evaluate(Input{Aggregates: tt.agg}))
		})
	}
}

func TestMaxTimeRule(t *testing.T) {
	r := MaxTimeRule{Interval: 5 * time.Minute}

	assert.Equal(t, VerdictNext, r.Evaluate(inputAt(5*time.Minute, 0)))
	assert.Equal(t, VerdictTrigger, r.Evaluate(inputAt(5*time.Minute+time.Second, 0)))

	in := inputAt(8*time.Minute, 0)
	in.History = []Feedback{{Timestamp: sessionStart.Add(5 * time.Minute)}}
	assert.Equal(t, VerdictNext, r.Evaluate(in))

	assert.Equal(t, VerdictNext, r.Evaluate(Input{Now: sessionStart}), "no reference time")
}

func TestDefaultRulesOrder(t *testing.T) {
	var names []string
	for _, r := range DefaultRules(DefaultThresholds()) {
		names = append(names, r.Name())
	}

	assert.Equal(t, []string{
		RuleWorkoutState,
		RuleMinimumInterval,
		RuleInitialFeedback,
		RuleFirstKilometer,
		RuleKilometer,
		RulePaceChange,
		RuleHeartRateChange,
		RuleElevationChange,
		RuleMaxTime,
	}, names)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "trigger", VerdictTrigger.String())
	assert.Equal(t, "skip", VerdictSkip.String())
	assert.Equal(t, "next", VerdictNext.String())

	text, err := VerdictSkip.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "skip", string(text))
}
