package pipeline

import (
	"log/slog"
	"time"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/session"
)

// Options configures the fit_coach replay pipeline.
type Options struct {
	FitPath   string
	OutDir    string
	Format    string // parquet|csv
	Overwrite bool
	// Compress writes feedback.jsonl.gz instead of feedback.jsonl.
	Compress bool

	Replay ReplayOptions
}

// BytesOptions configures an in-memory replay.
type BytesOptions struct {
	FitData  []byte
	Format   string // parquet|csv
	Compress bool

	Replay ReplayOptions
}

// ReplayOptions configures how samples are driven through a session.
type ReplayOptions struct {
	// PollInterval is the feedback polling cadence in sample time. Defaults to
	// session.DefaultPollInterval.
	PollInterval time.Duration
	// Rules overrides the default rule chain.
	Rules     []feedback.Rule
	Generator feedback.Generator
	Logger    *slog.Logger
	Metrics   *session.Metrics
}

// Result returns generated output paths.
type Result struct {
	OutputDir     string `json:"output_dir"`
	TimelinePath  string `json:"timeline_path"`
	FeedbackPath  string `json:"feedback_path"`
	SummaryPath   string `json:"summary_path"`
	SampleCount   int    `json:"sample_count"`
	PollCount     int    `json:"poll_count"`
	FeedbackCount int    `json:"feedback_count"`
}

// BytesResult holds generated artifacts keyed by file name.
type BytesResult struct {
	Files         map[string][]byte `json:"-"`
	SampleCount   int               `json:"sample_count"`
	PollCount     int               `json:"poll_count"`
	FeedbackCount int               `json:"feedback_count"`
}

// ReplayResult is the in-memory outcome of a replay.
type ReplayResult struct {
	Timeline []TimelineRow   `json:"timeline"`
	Summary  session.Summary `json:"summary"`
}

// TimelineRow is one poll of the replay: the rule chain's decision and the aggregates
// it saw.
type TimelineRow struct {
	TSUTCISO       string    `json:"ts_utc_iso"`
	Timestamp      time.Time `json:"-"`
	ElapsedS       float64   `json:"elapsed_s"`
	Rule           string    `json:"rule,omitempty"`
	Verdict        string    `json:"verdict"`
	FeedbackText   string    `json:"feedback_text,omitempty"`
	DistanceM      float64   `json:"distance_m"`
	PowerW30s      float64   `json:"power_w_30s"`
	HRBPM30s       float64   `json:"hr_bpm_30s"`
	HRBPM60s       float64   `json:"hr_bpm_60s"`
	HRBPMChange60s float64   `json:"hr_bpm_change_60s"`
	Pace30s        float64   `json:"pace_min_per_km_30s"`
	Pace60s        float64   `json:"pace_min_per_km_60s"`
	PaceChange60s  float64   `json:"pace_change_60s"`
	CadenceSPM30s  float64   `json:"cadence_spm_30s"`
	StrideM        float64   `json:"stride_m"`
	GradePct10s    float64   `json:"grade_pct_10s"`
	GAP60s         float64   `json:"gap_min_per_km_60s"`
	ElevGainM      float64   `json:"elevation_gain_m"`
}
