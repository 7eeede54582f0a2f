// Package llmexport sends feedback requests to a remote language-model endpoint.
//
// It builds a versioned JSON envelope from the session state at trigger time and posts
// it through a circuit-broken, retrying HTTP client. The envelope is a data contract;
// prompt wording is the endpoint's concern.
package llmexport

import (
	"time"

	"github.com/lucasjlepore/fit-coach/metrics"
)

const (
	// RequestFormatVersion identifies the request envelope schema.
	RequestFormatVersion = "coach_feedback_request_v1"

	// maxHistoryEntries bounds how much prior feedback is sent upstream.
	maxHistoryEntries = 10
)

// RequestEnvelope is the JSON body posted to the generator endpoint.
type RequestEnvelope struct {
	FormatVersion      string             `json:"format_version"`
	Model              string             `json:"model,omitempty"`
	Trigger            string             `json:"trigger"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
	Aggregates         metrics.Aggregates `json:"aggregates"`
	Latest             *metrics.RawSample `json:"latest,omitempty"`
	History            []HistoryEntry     `json:"history"`
	Units              map[string]string  `json:"units"`
}

// HistoryEntry is the compact form of one prior feedback.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Rule      string    `json:"rule"`
	Text      string    `json:"text"`
}

// Response is the JSON body returned by the generator endpoint.
type Response struct {
	Text       string `json:"text"`
	ResponseID string `json:"response_id,omitempty"`
}

// fieldUnits documents the aggregate units for downstream prompt builders.
var fieldUnits = map[string]string{
	"pace":        "min/km",
	"heart_rate":  "bpm",
	"power":       "W",
	"cadence":     "steps/min",
	"distance":    "m",
	"stride":      "m/step",
	"elevation":   "m",
	"grade":       "percent",
	"duration":    "s",
	"energy":      "kcal",
	"rate_window": "60s current minus previous 60s",
}
