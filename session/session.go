// Package session is the per-workout driver around the metrics engine and the feedback
// rule chain. A Session is constructed and passed explicitly; there is no process-wide
// session state.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/metrics"
)

// DefaultPollInterval is the reference feedback polling cadence.
const DefaultPollInterval = 5 * time.Second

// Config configures a Session. Zero values select defaults.
type Config struct {
	Rules      []feedback.Rule
	Generator  feedback.Generator
	Clock      feedback.Clock
	Logger     *slog.Logger
	Metrics    *Metrics
	OnFeedback func(feedback.Feedback)
}

// Summary is returned when a session stops.
type Summary struct {
	ID         uuid.UUID           `json:"session_id"`
	StartedAt  time.Time           `json:"started_at"`
	StoppedAt  time.Time           `json:"stopped_at"`
	Aggregates metrics.Aggregates  `json:"aggregates"`
	Latest     *metrics.RawSample  `json:"latest,omitempty"`
	Feedback   []feedback.Feedback `json:"feedback"`
}

// Snapshot is a consistent read of a running session.
type Snapshot struct {
	ID         uuid.UUID          `json:"session_id"`
	Active     bool               `json:"active"`
	Aggregates metrics.Aggregates `json:"aggregates"`
	Latest     *metrics.RawSample `json:"latest,omitempty"`
}

// Session owns one workout's preprocessor, feedback manager and in-flight guard.
type Session struct {
	pre     *metrics.Preprocessor
	manager *feedback.Manager
	clock   feedback.Clock
	logger  *slog.Logger
	metrics *Metrics

	// mu guards the lifecycle fields. Readers hold it while touching the engine so Stop
	// cannot clear state underneath them.
	mu        sync.RWMutex
	id        uuid.UUID
	active    bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	inFlight atomic.Bool
	wg       sync.WaitGroup
}

// New returns an inactive Session.
func New(cfg Config) *Session {
	s := &Session{
		pre:     metrics.NewPreprocessor(),
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if s.clock == nil {
		s.clock = feedback.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	onFeedback := cfg.OnFeedback
	s.manager = feedback.NewManager(feedback.ManagerConfig{
		Rules:     cfg.Rules,
		Generator: cfg.Generator,
		Clock:     s.clock,
		Logger:    s.logger,
		Observer:  s.metrics,
		OnFeedback: func(fb feedback.Feedback) {
			s.metrics.feedbackAppended(fb.Rule)
			if onFeedback != nil {
				onFeedback(fb)
			}
		},
	})
	return s
}

// Start clears all accumulators and history, assigns a new session ID and activates
// sample intake and polling. Starting an active session is a no-op.
func (s *Session) Start() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return s.id
	}
	s.pre.Clear()
	s.manager.Clear()
	s.id = uuid.New()
	s.startedAt = s.clock.Now()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.active = true
	s.metrics.sessionStarted()
	s.logger.Info("session started", "session_id", s.id.String())
	return s.id
}

// Stop deactivates the session, cancels a pending generation and waits for it, then
// returns the final state and clears it. Stopping an inactive session returns an empty
// summary.
func (s *Session) Stop() Summary {
	s.mu.Lock()
	if !s.active {
		id := s.id
		s.mu.Unlock()
		return Summary{ID: id}
	}
	s.active = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		ID:         s.id,
		StartedAt:  s.startedAt,
		StoppedAt:  s.clock.Now(),
		Aggregates: s.pre.Aggregates(),
		Latest:     s.pre.LatestMetrics(),
		Feedback:   s.manager.History(),
	}
	s.pre.Clear()
	s.manager.Clear()
	s.logger.Info("session stopped",
		"session_id", s.id.String(),
		"feedback_count", len(summary.Feedback),
		"distance_m", summary.Aggregates.DistanceM,
	)
	return summary
}

// AddSample feeds a sample to the preprocessor. Samples outside an active session are
// dropped and AddSample reports false.
func (s *Session) AddSample(sample metrics.RawSample) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.active {
		return false
	}
	s.pre.AddMetrics(sample)
	s.metrics.sampleAdded()
	return true
}

// AddMessage normalizes a wire sample and adds it.
func (s *Session) AddMessage(msg metrics.SampleMessage) bool {
	return s.AddSample(msg.Normalize())
}

// Poll runs the rule chain once. On trigger the generator runs on its own goroutine and
// Poll returns immediately; while it is pending, later polls are evaluated as in flight
// and skip.
func (s *Session) Poll() feedback.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := s.pre.Aggregates()
	latest := s.pre.LatestMetrics()
	if !s.active {
		return s.manager.Evaluate(agg, latest, feedback.State{WorkoutActive: false})
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return s.manager.Evaluate(agg, latest, feedback.State{WorkoutActive: true, InFlight: true})
	}

	d := s.manager.Evaluate(agg, latest, feedback.State{WorkoutActive: true})
	if d.Verdict != feedback.VerdictTrigger {
		s.inFlight.Store(false)
		return d
	}

	ctx := s.ctx
	s.metrics.generationPending(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		defer s.metrics.generationPending(false)
		s.manager.Trigger(ctx, d.Rule, agg, latest)
	}()
	return d
}

// Wait blocks until any pending generation has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Run polls every interval until ctx is done.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d := s.Poll()
			if d.Verdict == feedback.VerdictTrigger {
				s.logger.Debug("feedback triggered", "session_id", s.ID().String(), "rule", d.Rule)
			}
		}
	}
}

// ID returns the current session ID, or uuid.Nil before the first Start.
func (s *Session) ID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Active reports whether the session accepts samples.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Snapshot returns the current aggregates and latest sample.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:         s.id,
		Active:     s.active,
		Aggregates: s.pre.Aggregates(),
		Latest:     s.pre.LatestMetrics(),
	}
}

// History returns a copy of the feedback log.
func (s *Session) History() []feedback.Feedback {
	return s.manager.History()
}
