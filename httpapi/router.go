// Package httpapi serves a read-only JSON view of a running coaching session.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasjlepore/fit-coach/feedback"
	"github.com/lucasjlepore/fit-coach/session"
)

// Source is the session state the router reads. *session.Session satisfies it.
type Source interface {
	Snapshot() session.Snapshot
	History() []feedback.Feedback
}

// FeedbackResponse is the body of GET /v1/feedback.
type FeedbackResponse struct {
	SessionID string              `json:"session_id"`
	Count     int                 `json:"count"`
	Feedback  []feedback.Feedback `json:"feedback"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler holds the router dependencies.
type Handler struct {
	src      Source
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewRouter mounts the status endpoints. A nil gatherer leaves /metrics unmounted.
func NewRouter(src Source, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{src: src, gatherer: gatherer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.HandleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/aggregates", h.HandleAggregates)
		r.Get("/feedback", h.HandleFeedback)
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			MaxRequestsInFlight: 4,
			EnableOpenMetrics:   true,
		}))
	}
	return r
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.json(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"active": h.src.Snapshot().Active,
	})
}

// HandleAggregates handles GET /v1/aggregates.
func (h *Handler) HandleAggregates(w http.ResponseWriter, r *http.Request) {
	h.json(w, r, http.StatusOK, h.src.Snapshot())
}

// HandleFeedback handles GET /v1/feedback. The optional rule query parameter filters
// by triggering rule.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	history := h.src.History()
	if rule := r.URL.Query().Get("rule"); rule != "" {
		filtered := history[:0]
		for _, fb := range history {
			if fb.Rule == rule {
				filtered = append(filtered, fb)
			}
		}
		history = filtered
	}
	if history == nil {
		history = []feedback.Feedback{}
	}
	h.json(w, r, http.StatusOK, FeedbackResponse{
		SessionID: h.src.Snapshot().ID.String(),
		Count:     len(history),
		Feedback:  history,
	})
}

func (h *Handler) json(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshal response", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "failed to marshal response"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
