// Package feedback decides when a running session should receive coaching feedback.
//
// A Manager evaluates an ordered chain of Rules against the latest aggregates, the
// latest raw sample and the session's feedback history. The first rule that does not
// defer wins: Trigger invokes the injected Generator, Skip ends the poll silently.
package feedback

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lucasjlepore/fit-coach/metrics"
)

// Verdict is a rule's decision for one poll.
type Verdict int

const (
	// VerdictNext defers to the next rule in the chain.
	VerdictNext Verdict = iota
	// VerdictSkip stops evaluation without producing feedback.
	VerdictSkip
	// VerdictTrigger stops evaluation and requests feedback.
	VerdictTrigger
)

func (v Verdict) String() string {
	switch v {
	case VerdictSkip:
		return "skip"
	case VerdictTrigger:
		return "trigger"
	default:
		return "next"
	}
}

// MarshalText encodes the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Feedback is one entry of the session's append-only feedback log.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Rule      string    `json:"rule"`
	ChainID   string    `json:"chain_id,omitempty"`
	DistanceM float64   `json:"distance_m"`
}

// State is the session driver's view of the workout, supplied on every poll.
type State struct {
	WorkoutActive bool
	// InFlight reports that a previous generation has not completed yet.
	InFlight bool
}

// Input is everything a rule may look at.
type Input struct {
	Now        time.Time
	Aggregates metrics.Aggregates
	Latest     *metrics.RawSample
	History    []Feedback
	State      State
}

// LastFeedback returns the most recent history entry, or nil.
func (in Input) LastFeedback() *Feedback {
	if len(in.History) == 0 {
		return nil
	}
	return &in.History[len(in.History)-1]
}

// Rule is one link of the decision chain.
type Rule interface {
	Name() string
	Evaluate(in Input) Verdict
}

// Decision is the outcome of one pass over the chain. Rule is empty when every rule
// deferred.
type Decision struct {
	Rule    string  `json:"rule,omitempty"`
	Verdict Verdict `json:"verdict"`
}

// Request is what a Generator receives for a triggered rule.
type Request struct {
	Rule       string
	Aggregates metrics.Aggregates
	Latest     *metrics.RawSample
	History    []Feedback
}

// Generated is a Generator's result. ChainID links the next request to a stateful
// upstream conversation when the generator supports one.
type Generated struct {
	Text    string
	ChainID string
}

// Generator produces feedback text. Implementations are usually network bound.
type Generator interface {
	Generate(ctx context.Context, req Request) (Generated, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Generated, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Generated, error) {
	return f(ctx, req)
}

// Clock abstracts time so replays and tests can drive the rule chain deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// Observer receives decision and generation outcomes, typically to update metrics.
type Observer interface {
	Decided(d Decision)
	Generated(rule string, elapsed time.Duration, err error)
}
