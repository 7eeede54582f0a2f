package feedback

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/lucasjlepore/fit-coach/metrics"
)

// TemplateGenerator renders deterministic coaching text from the aggregates. It is the
// offline generator used for replays and when no remote endpoint is configured.
type TemplateGenerator struct{}

// Generate builds a short message for the triggering rule.
func (TemplateGenerator) Generate(_ context.Context, req Request) (Generated, error) {
	return Generated{Text: BuildFeedbackNote(req)}, nil
}

// BuildFeedbackNote turns a trigger and its aggregates into a spoken-style note.
func BuildFeedbackNote(req Request) string {
	a := req.Aggregates
	distance := a.DistanceM
	if req.Latest != nil {
		distance = req.Latest.DistanceM
	}

	var b strings.Builder
	switch req.Rule {
	case RuleInitialFeedback:
		fmt.Fprintf(&b, "Good start. %s in, pace %s, heart rate %.0f bpm.",
			formatDuration(a.SessionDurationS),
			formatPace(a.PaceMinutesPerKm30sWindowAverage),
			a.HeartRateBPM30sWindowAverage,
		)
	case RuleKilometer:
		fmt.Fprintf(&b, "Kilometer %d. Average pace %s, last minute %s.",
			kilometerIndex(distance),
			formatPace(a.PaceMinutesPerKmSessionAverage),
			formatPace(a.PaceMinutesPerKm60sWindowAverage),
		)
	case RulePaceChange:
		direction := "picking up"
		if a.PaceMinutesPerKm60sRateOfChange > 0 {
			direction = "slowing"
		}
		fmt.Fprintf(&b, "Your pace is %s by %s per kilometer, now %s.",
			direction,
			formatPace(math.Abs(a.PaceMinutesPerKm60sRateOfChange)),
			formatPace(a.PaceMinutesPerKm60sWindowAverage),
		)
	case RuleHeartRateChange:
		direction := "rising"
		if a.HeartRateBPM60sRateOfChange < 0 {
			direction = "dropping"
		}
		fmt.Fprintf(&b, "Heart rate %s, %+.0f bpm over the last minute to %.0f.",
			direction,
			a.HeartRateBPM60sRateOfChange,
			a.HeartRateBPM60sWindowAverage,
		)
	case RuleElevationChange:
		terrain := "Climbing"
		if a.GradePercentage10sWindow < 0 {
			terrain = "Descending"
		}
		fmt.Fprintf(&b, "%s at %.0f%% grade. Grade adjusted pace %s.",
			terrain,
			math.Abs(a.GradePercentage10sWindow),
			formatPace(a.GradeAdjustedPace60sWindowAverage),
		)
	default:
		fmt.Fprintf(&b, "%s elapsed, %.2f km covered at %s average.",
			formatDuration(a.SessionDurationS),
			distance/1000.0,
			formatPace(a.PaceMinutesPerKmSessionAverage),
		)
	}
	if hint := effortHint(a); hint != "" {
		b.WriteByte(' ')
		b.WriteString(hint)
	}
	return b.String()
}

func effortHint(a metrics.Aggregates) string {
	if a.CadenceSPM30sWindow > 0 && a.CadenceSPM30sWindow < 160 {
		return fmt.Sprintf("Cadence is %.0f, try quicker steps.", a.CadenceSPM30sWindow)
	}
	if a.ElevationGain30sWindowM > 5 {
		return "Keep the effort steady on the climb."
	}
	return ""
}

// formatPace renders minutes per kilometre as m:ss.
func formatPace(minPerKm float64) string {
	if minPerKm <= 0 || math.IsInf(minPerKm, 0) || math.IsNaN(minPerKm) {
		return "--:--"
	}
	total := int(math.Round(minPerKm * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
