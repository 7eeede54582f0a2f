package feedback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasjlepore/fit-coach/metrics"
)

// ErrEmptyFeedback is reported to the Observer when a generator returns no text.
var ErrEmptyFeedback = errors.New("generator returned empty feedback")

// ManagerConfig configures a Manager. Zero values select defaults.
type ManagerConfig struct {
	// Rules is the chain in priority order. Defaults to DefaultRules(DefaultThresholds()).
	Rules []Rule
	// Generator produces text on trigger. Defaults to TemplateGenerator.
	Generator Generator
	Clock     Clock
	Logger    *slog.Logger
	Observer  Observer
	// OnFeedback is called after each successful append, outside the history lock.
	OnFeedback func(Feedback)
}

// Manager runs the rule chain and owns the session's feedback history.
//
// MaybeTriggerFeedback must not be called again while a previous call is still
// generating; the session driver guards this with State.InFlight.
type Manager struct {
	rules      []Rule
	generator  Generator
	clock      Clock
	logger     *slog.Logger
	observer   Observer
	onFeedback func(Feedback)

	mu      sync.Mutex
	history []Feedback
}

// NewManager returns a Manager with an empty history.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		rules:      cfg.Rules,
		generator:  cfg.Generator,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		onFeedback: cfg.OnFeedback,
	}
	if m.rules == nil {
		m.rules = DefaultRules(DefaultThresholds())
	}
	if m.generator == nil {
		m.generator = TemplateGenerator{}
	}
	if m.clock == nil {
		m.clock = RealClock{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Evaluate runs the chain once and returns the first non-deferring decision.
func (m *Manager) Evaluate(agg metrics.Aggregates, latest *metrics.RawSample, state State) Decision {
	in := Input{
		Now:        m.clock.Now(),
		Aggregates: agg,
		Latest:     latest,
		History:    m.History(),
		State:      state,
	}
	d := m.evaluate(in)
	if m.observer != nil {
		m.observer.Decided(d)
	}
	return d
}

func (m *Manager) evaluate(in Input) Decision {
	for _, rule := range m.rules {
		if v := rule.Evaluate(in); v != VerdictNext {
			return Decision{Rule: rule.Name(), Verdict: v}
		}
	}
	return Decision{Verdict: VerdictNext}
}

// MaybeTriggerFeedback evaluates the chain and, on trigger, calls the generator and
// appends the result to history. Generator failures are logged and leave history
// untouched, so the same condition can fire again on the next poll.
func (m *Manager) MaybeTriggerFeedback(ctx context.Context, agg metrics.Aggregates, latest *metrics.RawSample, state State) (Decision, *Feedback) {
	d := m.Evaluate(agg, latest, state)
	if d.Verdict != VerdictTrigger {
		m.logger.Debug("feedback not triggered", "rule", d.Rule, "verdict", d.Verdict.String())
		return d, nil
	}
	return d, m.Trigger(ctx, d.Rule, agg, latest)
}

// Trigger runs the generator for rule and appends the result. It returns nil when
// generation fails or ctx is cancelled before the result arrives.
func (m *Manager) Trigger(ctx context.Context, rule string, agg metrics.Aggregates, latest *metrics.RawSample) *Feedback {
	req := Request{
		Rule:       rule,
		Aggregates: agg,
		Latest:     latest,
		History:    m.History(),
	}
	started := time.Now()
	out, err := m.generator.Generate(ctx, req)
	if err == nil && out.Text == "" {
		err = ErrEmptyFeedback
	}
	if m.observer != nil {
		m.observer.Generated(rule, time.Since(started), err)
	}
	if err != nil {
		m.logger.Error("feedback generation failed", "rule", rule, "error", err)
		return nil
	}
	if ctx.Err() != nil {
		m.logger.Debug("discarding feedback for cancelled generation", "rule", rule)
		return nil
	}

	fb := Feedback{
		ID:        uuid.New(),
		Timestamp: m.clock.Now(),
		Text:      out.Text,
		Rule:      rule,
		ChainID:   out.ChainID,
		DistanceM: agg.DistanceM,
	}
	if latest != nil {
		fb.DistanceM = latest.DistanceM
	}

	m.mu.Lock()
	m.history = append(m.history, fb)
	m.mu.Unlock()

	m.logger.Info("feedback generated", "rule", fb.Rule, "feedback_id", fb.ID.String(), "distance_m", fb.DistanceM)
	if m.onFeedback != nil {
		m.onFeedback(fb)
	}
	return &fb
}

// History returns a copy of the feedback log.
func (m *Manager) History() []Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Feedback, len(m.history))
	copy(out, m.history)
	return out
}

// Clear discards the feedback log.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = nil
}
