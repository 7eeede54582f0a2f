// Package pipeline replays a recorded FIT activity through a coaching session and
// writes the poll timeline, the feedback log and the session summary.
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const summaryFileName = "session_summary.json"

// Run executes the fit_coach replay and writes all artifacts under opts.OutDir.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.FitPath) == "" {
		return nil, fmt.Errorf("fit path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(opts.FitPath)
	if err != nil {
		return nil, fmt.Errorf("open fit: %w", err)
	}
	defer f.Close()

	replay, sampleCount, err := replayActivity(f, opts.Replay)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}

	res := &Result{
		OutputDir:     opts.OutDir,
		TimelinePath:  filepath.Join(opts.OutDir, "timeline."+formatExtension(format)),
		FeedbackPath:  filepath.Join(opts.OutDir, feedbackFileName(opts.Compress)),
		SummaryPath:   filepath.Join(opts.OutDir, summaryFileName),
		SampleCount:   sampleCount,
		PollCount:     len(replay.Timeline),
		FeedbackCount: len(replay.Summary.Feedback),
	}

	switch format {
	case "csv":
		err = createFile(res.TimelinePath, func(w io.Writer) error {
			return writeTimelineCSV(w, replay.Timeline)
		})
		if err != nil {
			return nil, fmt.Errorf("write timeline csv: %w", err)
		}
	case "parquet":
		if err := writeTimelineParquet(res.TimelinePath, replay.Timeline); err != nil {
			return nil, fmt.Errorf("write timeline parquet: %w", err)
		}
	}

	err = createFile(res.FeedbackPath, func(w io.Writer) error {
		return writeFeedbackJSONL(w, replay.Summary.Feedback, opts.Compress)
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", filepath.Base(res.FeedbackPath), err)
	}
	if err := writeJSON(res.SummaryPath, replay.Summary); err != nil {
		return nil, fmt.Errorf("write %s: %w", summaryFileName, err)
	}
	return res, nil
}

// RunBytes replays an in-memory FIT file and returns the artifacts keyed by file name.
func RunBytes(opts BytesOptions) (*BytesResult, error) {
	if len(opts.FitData) == 0 {
		return nil, fmt.Errorf("fit data is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	replay, sampleCount, err := replayActivity(bytes.NewReader(opts.FitData), opts.Replay)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, 3)
	timelineName := "timeline." + formatExtension(format)
	switch format {
	case "csv":
		var buf bytes.Buffer
		if err := writeTimelineCSV(&buf, replay.Timeline); err != nil {
			return nil, fmt.Errorf("write timeline csv: %w", err)
		}
		files[timelineName] = buf.Bytes()
	case "parquet":
		data, err := marshalTimelineParquet(replay.Timeline)
		if err != nil {
			return nil, fmt.Errorf("write timeline parquet: %w", err)
		}
		files[timelineName] = data
	}

	fbData, err := marshalFeedbackJSONL(replay.Summary.Feedback, opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("write feedback: %w", err)
	}
	files[feedbackFileName(opts.Compress)] = fbData

	var summary bytes.Buffer
	if err := encodeJSON(&summary, replay.Summary); err != nil {
		return nil, fmt.Errorf("write %s: %w", summaryFileName, err)
	}
	files[summaryFileName] = summary.Bytes()

	return &BytesResult{
		Files:         files,
		SampleCount:   sampleCount,
		PollCount:     len(replay.Timeline),
		FeedbackCount: len(replay.Summary.Feedback),
	}, nil
}

func replayActivity(r io.Reader, opts ReplayOptions) (*ReplayResult, int, error) {
	activity, err := decodeActivity(r)
	if err != nil {
		return nil, 0, err
	}
	samples := samplesFromActivity(activity)
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("no timestamped record messages found")
	}
	res, err := Replay(samples, opts)
	if err != nil {
		return nil, 0, err
	}
	return res, len(samples), nil
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}
