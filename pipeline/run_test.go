package pipeline

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/session"
)

var fitStart = time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)

const fitSeconds = 360

// buildTestActivity returns a steady 3 m/s run, one record per second.
func buildTestActivity(t *testing.T) (*fit.File, *fit.ActivityFile) {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	require.NoError(t, err)
	activity, err := file.Activity()
	require.NoError(t, err)

	event := fit.NewEventMsg()
	event.Timestamp = fitStart
	event.Event = fit.EventTimer
	event.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, event)

	for i := 0; i < fitSeconds; i++ {
		rec := fit.NewRecordMsg()
		rec.Timestamp = fitStart.Add(time.Duration(i) * time.Second)
		rec.HeartRate = 150
		rec.Cadence = 85
		rec.Speed = 3000
		rec.Distance = uint32(i * 300)
		rec.Altitude = uint16((100 + 500) * 5)
		activity.Records = append(activity.Records, rec)
	}

	stop := fit.NewEventMsg()
	stop.Timestamp = fitStart.Add(fitSeconds * time.Second)
	stop.Event = fit.EventTimer
	stop.EventType = fit.EventTypeStop
	activity.Events = append(activity.Events, stop)

	return file, activity
}

func buildTestFIT(t *testing.T) []byte {
	t.Helper()

	file, _ := buildTestActivity(t)
	var buf bytes.Buffer
	require.NoError(t, fit.Encode(&buf, file, binary.LittleEndian))
	return buf.Bytes()
}

func quietReplay() ReplayOptions {
	return ReplayOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSamplesFromActivity(t *testing.T) {
	_, activity := buildTestActivity(t)
	activity.Records[10].Altitude = uint16((104 + 500) * 5)

	samples := samplesFromActivity(activity)
	require.Len(t, samples, fitSeconds)

	first := samples[0]
	assert.Equal(t, fitStart, first.SessionStart)
	assert.Equal(t, 150.0, first.HeartRateBPM)
	assert.InDelta(t, 3.0, first.SpeedMPS, 1e-9)
	assert.Zero(t, first.StepCount)
	assert.Zero(t, first.ElevationM)
	assert.Zero(t, first.PowerW, "invalid power reads as zero")

	assert.InDelta(t, 4.0, samples[10].ElevationM, 1e-9)
	assert.InDelta(t, 0.0, samples[11].ElevationM, 1e-9)

	// 85 strides per minute is 170 steps per minute.
	assert.InDelta(t, 170, samples[60].StepCount, 1)
	assert.InDelta(t, 180.0, samples[60].DistanceM, 1e-9)
}

func TestSamplesFromActivitySkipsUntimedRecords(t *testing.T) {
	_, activity := buildTestActivity(t)
	activity.Records[0].Timestamp = time.Time{}

	samples := samplesFromActivity(activity)
	require.Len(t, samples, fitSeconds-1)
	assert.Equal(t, fitStart.Add(time.Second), samples[0].SessionStart)
}

func TestSamplesFromActivitySpreadsSessionEnergy(t *testing.T) {
	_, activity := buildTestActivity(t)
	s := fit.NewSessionMsg()
	s.StartTime = fitStart
	s.TotalCalories = 60
	s.TotalElapsedTime = fitSeconds * 1000
	activity.Sessions = append(activity.Sessions, s)

	samples := samplesFromActivity(activity)
	require.NotEmpty(t, samples)
	assert.InDelta(t, 30.0, samples[180].ActiveEnergyKcal, 1e-9)
	assert.InDelta(t, 60.0*359/360, samples[len(samples)-1].ActiveEnergyKcal, 1e-9)
}

func TestReplayTimelineAndFeedback(t *testing.T) {
	_, activity := buildTestActivity(t)
	samples := samplesFromActivity(activity)

	res, err := Replay(samples, quietReplay())
	require.NoError(t, err)

	// One poll every 5s of sample time plus a final poll at the last sample.
	require.Len(t, res.Timeline, fitSeconds/5)
	assert.Equal(t, 5.0, res.Timeline[0].ElapsedS)

	require.Len(t, res.Summary.Feedback, 2)
	assert.Equal(t, feedback.RuleInitialFeedback, res.Summary.Feedback[0].Rule)
	assert.Equal(t, fitStart.Add(35*time.Second), res.Summary.Feedback[0].Timestamp)
	assert.Equal(t, feedback.RuleKilometer, res.Summary.Feedback[1].Rule)
	assert.Equal(t, 1002.0, res.Summary.Feedback[1].DistanceM)

	var triggered []TimelineRow
	for _, row := range res.Timeline {
		if row.Verdict == "trigger" {
			triggered = append(triggered, row)
		}
	}
	require.Len(t, triggered, 2)
	assert.Equal(t, 35.0, triggered[0].ElapsedS)
	assert.Equal(t, res.Summary.Feedback[0].Text, triggered[0].FeedbackText)

	assert.Equal(t, fitStart.Add((fitSeconds-1)*time.Second), res.Summary.StoppedAt)
	assert.Equal(t, float64(fitSeconds-1), res.Summary.Aggregates.SessionDurationS)
}

func TestReplayRejectsEmptyInput(t *testing.T) {
	_, err := Replay(nil, ReplayOptions{})
	require.Error(t, err)
}

func TestReplayRecordsMetrics(t *testing.T) {
	_, activity := buildTestActivity(t)
	opts := quietReplay()
	opts.Metrics = session.NewMetrics()

	_, err := Replay(samplesFromActivity(activity), opts)
	require.NoError(t, err)
}

func TestRunWritesCSVArtifacts(t *testing.T) {
	tmp := t.TempDir()
	fitPath := filepath.Join(tmp, "run.fit")
	require.NoError(t, os.WriteFile(fitPath, buildTestFIT(t), 0o644))

	outDir := filepath.Join(tmp, "out")
	res, err := Run(Options{
		FitPath: fitPath,
		OutDir:  outDir,
		Format:  "csv",
		Replay:  quietReplay(),
	})
	require.NoError(t, err)
	assert.Equal(t, fitSeconds, res.SampleCount)
	assert.Equal(t, 2, res.FeedbackCount)

	f, err := os.Open(res.TimelinePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, res.PollCount+1)
	assert.Equal(t, timelineHeader, rows[0])

	fb, err := os.Open(res.FeedbackPath)
	require.NoError(t, err)
	defer fb.Close()
	var lines []feedback.Feedback
	scanner := bufio.NewScanner(fb)
	for scanner.Scan() {
		var entry feedback.Feedback
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, feedback.RuleKilometer, lines[1].Rule)

	data, err := os.ReadFile(res.SummaryPath)
	require.NoError(t, err)
	var summary session.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Len(t, summary.Feedback, 2)
	assert.InDelta(t, 1077.0, summary.Aggregates.DistanceM, 1e-9)

	_, err = Run(Options{FitPath: fitPath, OutDir: outDir, Format: "csv", Replay: quietReplay()})
	require.Error(t, err, "non-empty output dir without overwrite")

	_, err = Run(Options{FitPath: fitPath, OutDir: outDir, Format: "csv", Overwrite: true, Replay: quietReplay()})
	require.NoError(t, err)
}

func TestRunWritesParquet(t *testing.T) {
	tmp := t.TempDir()
	fitPath := filepath.Join(tmp, "run.fit")
	require.NoError(t, os.WriteFile(fitPath, buildTestFIT(t), 0o644))

	res, err := Run(Options{FitPath: fitPath, OutDir: filepath.Join(tmp, "out"), Replay: quietReplay()})
	require.NoError(t, err)
	assert.Equal(t, "timeline.parquet", filepath.Base(res.TimelinePath))

	info, err := os.Stat(res.TimelinePath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunValidatesOptions(t *testing.T) {
	_, err := Run(Options{OutDir: t.TempDir()})
	assert.Error(t, err)
	_, err = Run(Options{FitPath: "x.fit"})
	assert.Error(t, err)
	_, err = Run(Options{FitPath: "x.fit", OutDir: t.TempDir(), Format: "xlsx"})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestRunBytesProducesArtifacts(t *testing.T) {
	res, err := RunBytes(BytesOptions{
		FitData:  buildTestFIT(t),
		Format:   "parquet",
		Compress: true,
		Replay:   quietReplay(),
	})
	require.NoError(t, err)

	for _, name := range []string{"timeline.parquet", "feedback.jsonl.gz", summaryFileName} {
		assert.NotEmpty(t, res.Files[name], name)
	}
	assert.Equal(t, 2, res.FeedbackCount)

	zr, err := gzip.NewReader(bytes.NewReader(res.Files["feedback.jsonl.gz"]))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(plain, []byte("\n")))
}

func TestRunBytesRejectsGarbage(t *testing.T) {
	_, err := RunBytes(BytesOptions{FitData: []byte("not a fit file")})
	require.Error(t, err)
}
