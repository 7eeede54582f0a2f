package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/session"
)

var start = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestSession(t *testing.T, m *session.Metrics) *session.Session {
	t.Helper()

	s := session.New(session.Config{
		Generator: feedback.GeneratorFunc(func(_ context.Context, req feedback.Request) (feedback.Generated, error) {
			return feedback.Generated{Text: "steady " + req.Rule}, nil
		}),
		Clock:   fixedClock{now: start.Add(time.Minute)},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
	})
	s.Start()
	for i := 1; i <= 60; i++ {
		s.AddSample(metrics.RawSample{
			HeartRateBPM: 150,
			SpeedMPS:     3,
			DistanceM:    float64(i) * 3,
			Timestamp:    start.Add(time.Duration(i) * time.Second),
			SessionStart: start,
		})
	}
	require.Equal(t, feedback.VerdictTrigger, s.Poll().Verdict)
	s.Wait()
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestSession(t, nil)
	rec := get(t, NewRouter(s, nil, nil), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","active":true}`, rec.Body.String())
}

func TestAggregates(t *testing.T) {
	s := newTestSession(t, nil)
	rec := get(t, NewRouter(s, nil, nil), "/v1/aggregates")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, s.ID(), snap.ID)
	assert.True(t, snap.Active)
	assert.Equal(t, 180.0, snap.Aggregates.DistanceM)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, 150.0, snap.Latest.HeartRateBPM)
}

func TestFeedback(t *testing.T) {
	s := newTestSession(t, nil)
	router := NewRouter(s, nil, nil)

	rec := get(t, router, "/v1/feedback")
	require.Equal(t, http.StatusOK, rec.Code)
	var body FeedbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, s.ID().String(), body.SessionID)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "steady initial_feedback", body.Feedback[0].Text)

	rec = get(t, router, "/v1/feedback?rule=kilometer")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
	assert.NotNil(t, body.Feedback)
}

func TestMetricsEndpoint(t *testing.T) {
	m := session.NewMetrics()
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)
	s := newTestSession(t, m)

	rec := get(t, NewRouter(s, reg, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fitcoach_samples_total 60")

	rec = get(t, NewRouter(s, nil, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
