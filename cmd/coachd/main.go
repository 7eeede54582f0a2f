package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/lucasjlepore/fit-coach/config"
	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/httpapi"
	"github.com/lucasjlepore/fit-coach/metrics"
	"github.com/lucasjlepore/fit-coach/session"
)

const maxLineBytes = 1 << 20

func main() {
	addr := flag.String("addr", "", "Status listen address (default from COACH_SERVER_ADDR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [--addr :9464] < samples.jsonl\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "coachd config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg, os.Stdin, logger)
	if err != nil {
		logger.Error("coachd failed", "error", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("encode summary", "error", err)
		os.Exit(1)
	}
}

// run drives one live session: samples are read from in until EOF or ctx is done, the
// session is polled on the configured cadence and the status surface is served.
func run(ctx context.Context, cfg *config.Config, in io.Reader, logger *slog.Logger) (session.Summary, error) {
	generator, err := cfg.Generator.NewGenerator(logger)
	if err != nil {
		return session.Summary{}, err
	}

	reg := prometheus.NewRegistry()
	m := session.NewMetrics()
	m.MustRegister(reg)

	s := session.New(session.Config{
		Rules:     feedback.DefaultRules(cfg.Feedback.Thresholds()),
		Generator: generator,
		Logger:    logger,
		Metrics:   m,
		OnFeedback: func(fb feedback.Feedback) {
			logger.Info("coach says", "rule", fb.Rule, "text", fb.Text)
		},
	})
	id := s.Start()
	logger.Info("coachd ready", "session_id", id.String(), "addr", cfg.Server.Addr, "poll_interval", cfg.Feedback.PollInterval.String())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(s, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// End of input ends the session.
		defer cancel()
		return ingest(gctx, in, s, logger)
	})
	g.Go(func() error {
		return s.Run(gctx, cfg.Feedback.PollInterval)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	return s.Stop(), err
}

// ingest decodes one SampleMessage per line. Malformed lines are logged and skipped.
func ingest(ctx context.Context, in io.Reader, s *session.Session, logger *slog.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	stamp := newStamper(time.Now)
	var n, bad int
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				logger.Info("sample input closed", "samples", n, "rejected", bad)
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read samples: %w", err)
					}
				default:
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			var msg metrics.SampleMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				bad++
				logger.Warn("rejecting sample line", "line", n+bad, "error", err)
				continue
			}
			if s.AddMessage(stamp.apply(msg)) {
				n++
			}
		}
	}
}

// stamper fills in timestamps a source left out. Without them windows never evict and
// the session duration stays 0.
type stamper struct {
	now   func() time.Time
	start time.Time
}

func newStamper(now func() time.Time) *stamper {
	return &stamper{now: now}
}

// apply stamps a message lacking timestamp with the receive time and one lacking
// session_start with the first time seen.
func (st *stamper) apply(msg metrics.SampleMessage) metrics.SampleMessage {
	if msg.Timestamp == nil {
		ts := st.now()
		msg.Timestamp = &ts
	}
	if st.start.IsZero() {
		st.start = *msg.Timestamp
	}
	if msg.SessionStart == nil {
		start := st.start
		msg.SessionStart = &start
	}
	return msg
}
