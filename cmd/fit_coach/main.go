package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/fit-coach/config"
	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/pipeline"
)

func main() {
	var (
		fitPath     = flag.String("fit", "", "Path to input .fit file")
		outDir      = flag.String("out", "", "Output directory")
		format      = flag.String("format", "parquet", "Timeline format: parquet|csv")
		poll        = flag.Duration("poll", 0, "Feedback poll interval in sample time (default from COACH_FEEDBACK_POLL_INTERVAL)")
		minInterval = flag.Duration("min-interval", -1, "Minimum spacing between feedback, 0 disables (default from COACH_FEEDBACK_MIN_INTERVAL)")
		compress    = flag.Bool("gzip", false, "Write feedback.jsonl.gz instead of feedback.jsonl")
		overwrite   = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --fit input.fit --out outdir [--format parquet|csv] [--poll 5s] [--min-interval 30s] [--gzip]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*fitPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit_coach config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg, os.Stderr)

	thresholds := cfg.Feedback.Thresholds()
	if *minInterval >= 0 {
		thresholds.MinInterval = *minInterval
	}
	pollInterval := cfg.Feedback.PollInterval
	if *poll > 0 {
		pollInterval = *poll
	}
	generator, err := cfg.Generator.NewGenerator(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit_coach generator: %v\n", err)
		os.Exit(1)
	}

	started := time.Now()
	result, err := pipeline.Run(pipeline.Options{
		FitPath:   *fitPath,
		OutDir:    *outDir,
		Format:    *format,
		Overwrite: *overwrite,
		Compress:  *compress,
		Replay: pipeline.ReplayOptions{
			PollInterval: pollInterval,
			Rules:        feedback.DefaultRules(thresholds),
			Generator:    generator,
			Logger:       logger,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fit_coach failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fit_coach complete in %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("timeline:            %s\n", result.TimelinePath)
	fmt.Printf("feedback:            %s\n", result.FeedbackPath)
	fmt.Printf("session summary:     %s\n", result.SummaryPath)
	fmt.Printf("samples:             %d\n", result.SampleCount)
	fmt.Printf("polls:               %d\n", result.PollCount)
	fmt.Printf("feedback entries:    %d\n", result.FeedbackCount)
}
