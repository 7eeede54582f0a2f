package llmexport

import (
	"maps"

	"github.com/lucasjlepore/fit-coach/feedback"
)

// BuildRequest converts a trigger into the wire envelope. The most recent history
// ChainID becomes PreviousResponseID so the endpoint can continue a conversation.
func BuildRequest(req feedback.Request, model string) RequestEnvelope {
	env := RequestEnvelope{
		FormatVersion: RequestFormatVersion,
		Model:         model,
		Trigger:       req.Rule,
		Aggregates:    req.Aggregates,
		History:       make([]HistoryEntry, 0, min(len(req.History), maxHistoryEntries)),
		Units:         maps.Clone(fieldUnits),
	}
	if req.Latest != nil {
		latest := *req.Latest
		env.Latest = &latest
	}

	history := req.History
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}
	for _, f := range history {
		env.History = append(env.History, HistoryEntry{
			Timestamp: f.Timestamp,
			Rule:      f.Rule,
			Text:      f.Text,
		})
	}
	for i := len(req.History) - 1; i >= 0; i-- {
		if id := req.History[i].ChainID; id != "" {
			env.PreviousResponseID = id
			break
		}
	}
	return env
}
