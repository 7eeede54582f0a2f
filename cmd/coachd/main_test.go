package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fit-coach/config"
	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleLines(n int) string {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `{"heart_rate":150,"distance":%d,"speed":3,"step_count":%d,"timestamp":%q,"session_start":%q}`+"\n",
			i*3, i*3, start.Add(time.Duration(i)*time.Second).Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return b.String()
}

func TestIngestSkipsMalformedLines(t *testing.T) {
	s := session.New(session.Config{Logger: discardLogger()})
	s.Start()

	input := sampleLines(3) + "not json\n\n" + sampleLines(1)
	require.NoError(t, ingest(context.Background(), strings.NewReader(input), s, discardLogger()))

	snap := s.Snapshot()
	require.NotNil(t, snap.Latest)
	assert.Equal(t, 3.0, snap.Latest.DistanceM, "last line wins")
	assert.Equal(t, 150.0, snap.Aggregates.HeartRateBPMSessionAverage)
}

func TestIngestStopsOnCancel(t *testing.T) {
	s := session.New(session.Config{Logger: discardLogger()})
	s.Start()

	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ingest(ctx, pr, s, discardLogger()) }()

	_, err := io.WriteString(pw, sampleLines(1))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Snapshot().Latest != nil }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ingest did not return after cancel")
	}
}

func TestRunEndsAtEOF(t *testing.T) {
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Feedback.PollInterval = 10 * time.Millisecond

	summary, err := run(context.Background(), cfg, strings.NewReader(sampleLines(90)), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 270.0, summary.Aggregates.DistanceM)
	assert.Equal(t, 90.0, summary.Aggregates.SessionDurationS)
	require.NotNil(t, summary.Latest)
}

func TestStamperFillsMissingTimestamps(t *testing.T) {
	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	tick := 0
	st := newStamper(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	first := st.apply(metrics.SampleMessage{})
	require.NotNil(t, first.Timestamp)
	require.NotNil(t, first.SessionStart)
	assert.Equal(t, base.Add(time.Second), *first.Timestamp)
	assert.Equal(t, base.Add(time.Second), *first.SessionStart)

	second := st.apply(metrics.SampleMessage{})
	assert.Equal(t, base.Add(2*time.Second), *second.Timestamp)
	assert.Equal(t, base.Add(time.Second), *second.SessionStart)

	sent := base.Add(time.Hour)
	kept := st.apply(metrics.SampleMessage{Timestamp: &sent, SessionStart: &base})
	assert.Equal(t, sent, *kept.Timestamp)
	assert.Equal(t, base, *kept.SessionStart)
	assert.Equal(t, 2, tick, "source timestamps are not replaced")
}

func TestIngestStampsUntimedLines(t *testing.T) {
	s := session.New(session.Config{Logger: discardLogger()})
	s.Start()

	input := `{"heart_rate":140,"distance":3}` + "\n" + `{"heart_rate":142,"distance":6}` + "\n"
	require.NoError(t, ingest(context.Background(), strings.NewReader(input), s, discardLogger()))

	snap := s.Snapshot()
	require.NotNil(t, snap.Latest)
	assert.False(t, snap.Latest.Timestamp.IsZero())
	assert.False(t, snap.Latest.SessionStart.IsZero())
	assert.GreaterOrEqual(t, snap.Aggregates.SessionDurationS, 0.0)
}
