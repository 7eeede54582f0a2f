package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/session"
)

// sampleClock reports sample time so rules that compare against "now" see the
// recorded workout rather than the wall clock.
type sampleClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *sampleClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *sampleClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Replay drives samples through a fresh session, polling every PollInterval of sample
// time. Each poll waits for its generation to finish, so the run is deterministic for a
// deterministic generator.
func Replay(samples []metrics.RawSample, opts ReplayOptions) (*ReplayResult, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to replay")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = session.DefaultPollInterval
	}

	first := samples[0]
	start := first.SessionStart
	if start.IsZero() {
		start = first.Timestamp
	}
	clock := &sampleClock{now: start}
	s := session.New(session.Config{
		Rules:     opts.Rules,
		Generator: opts.Generator,
		Clock:     clock,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	s.Start()

	var timeline []TimelineRow
	poll := func(at time.Time) {
		clock.set(at)
		before := len(s.History())
		d := s.Poll()
		s.Wait()

		snap := s.Snapshot()
		row := timelineRow(at, start, d, snap.Aggregates)
		if history := s.History(); len(history) > before {
			row.FeedbackText = history[len(history)-1].Text
		}
		timeline = append(timeline, row)
	}

	next := first.Timestamp.Add(interval)
	for _, sample := range samples {
		for !sample.Timestamp.Before(next) {
			poll(next)
			next = next.Add(interval)
		}
		clock.set(sample.Timestamp)
		s.AddSample(sample)
	}
	poll(samples[len(samples)-1].Timestamp)

	summary := s.Stop()
	return &ReplayResult{Timeline: timeline, Summary: summary}, nil
}

func timelineRow(at, start time.Time, d feedback.Decision, agg metrics.Aggregates) TimelineRow {
	return TimelineRow{
		TSUTCISO:       at.UTC().Format(time.RFC3339Nano),
		Timestamp:      at,
		ElapsedS:       at.Sub(start).Seconds(),
		Rule:           d.Rule,
		Verdict:        d.Verdict.String(),
		DistanceM:      agg.DistanceM,
		PowerW30s:      agg.PowerW30sWindowAverage,
		HRBPM30s:       agg.HeartRateBPM30sWindowAverage,
		HRBPM60s:       agg.HeartRateBPM60sWindowAverage,
		HRBPMChange60s: agg.HeartRateBPM60sRateOfChange,
		Pace30s:        agg.PaceMinutesPerKm30sWindowAverage,
		Pace60s:        agg.PaceMinutesPerKm60sWindowAverage,
		PaceChange60s:  agg.PaceMinutesPerKm60sRateOfChange,
		CadenceSPM30s:  agg.CadenceSPM30sWindow,
		StrideM:        agg.StrideLengthM,
		GradePct10s:    agg.GradePercentage10sWindow,
		GAP60s:         agg.GradeAdjustedPace60sWindowAverage,
		ElevGainM:      agg.ElevationGainSessionM,
	}
}
