package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/go-mood-classifier/internal/domain"
	"github.com/justestif/go-mood-classifier/internal/evaluate"
	"github.com/justestif/go-mood-classifier/internal/table"
)

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	files     Files
	templates *Templates
	metrics   *Metrics
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(files Files, templates *Templates, metrics *Metrics, logger *slog.Logger) *Handlers {
	return &Handlers{
		files:     files,
		templates: templates,
		metrics:   metrics,
		logger:    logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type predictionResponse struct {
	ID         string  `json:"id"`
	Mood       string  `json:"predicted_mood"`
	Confidence float64 `json:"confidence"`
	Split      string  `json:"split"`
}

type assignmentResponse struct {
	ID       string  `json:"id"`
	Cluster  int     `json:"cluster_index"`
	Distance float64 `json:"distance"`
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Report handles GET /api/report.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	report, err := evaluate.ReadFile(h.files.Report)
	if err != nil {
		h.fail(w, r, "report", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, report)
}

// Predictions handles GET /api/predictions. Optional split and mood query
// parameters filter the rows.
func (h *Handlers) Predictions(w http.ResponseWriter, r *http.Request) {
	preds, err := table.ReadPredictions(h.files.Predictions)
	if err != nil {
		h.fail(w, r, "predictions", err)
		return
	}

	q := r.URL.Query()
	var mood domain.Mood
	if s := q.Get("mood"); s != "" {
		if mood, err = domain.ParseMood(s); err != nil {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
	}
	split := domain.Split(q.Get("split"))

	out := make([]predictionResponse, 0, len(preds))
	for _, p := range preds {
		if split != "" && p.Split != split {
			continue
		}
		if mood != "" && p.Mood != mood {
			continue
		}
		out = append(out, predictionResponse{ID: p.TrackID, Mood: p.Mood.String(), Confidence: p.Confidence, Split: string(p.Split)})
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// Clusters handles GET /api/clusters. An optional cluster query parameter
// selects one cluster.
func (h *Handlers) Clusters(w http.ResponseWriter, r *http.Request) {
	assignments, err := table.ReadAssignments(h.files.Clusters)
	if err != nil {
		h.fail(w, r, "clusters", err)
		return
	}

	want := -1
	if s := r.URL.Query().Get("cluster"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "cluster must be a non-negative integer"})
			return
		}
		want = n
	}

	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		if want >= 0 && a.Cluster != want {
			continue
		}
		out = append(out, assignmentResponse{ID: a.TrackID, Cluster: a.Cluster, Distance: a.Distance})
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// Home handles the report page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := ReportPageData{
		PageData: PageData{
			Title:       "Mood Classifier",
			CurrentPath: r.URL.Path,
		},
	}

	report, err := evaluate.ReadFile(h.files.Report)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data.Flash = &FlashMessage{Type: "info", Message: "No evaluation report yet. Run the evaluate stage first."}
	case err != nil:
		h.logger.Error("reading report", "path", h.files.Report, "error", err)
		data.Flash = &FlashMessage{Type: "error", Message: "The evaluation report could not be read."}
	default:
		data.Report = report
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "report", data); err != nil {
		h.logger.Error("rendering report page", "error", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Metrics handles GET /metrics, refreshing the report gauges first.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	report, err := evaluate.ReadFile(h.files.Report)
	if err == nil {
		h.metrics.Observe(report)
	} else if !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("reading report for metrics", "path", h.files.Report, "error", err)
	}
	h.metrics.Handler().ServeHTTP(w, r)
}

// fail maps a read error to a JSON response: 404 when the stage output
// has not been produced yet, 500 otherwise.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		h.writeJSON(w, r, http.StatusNotFound, errorResponse{Error: what + " not found"})
		return
	}
	h.logger.Error("reading "+what, "error", err, "request_id", middleware.GetReqID(r.Context()))
	h.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "failed to read " + what})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("writing response", "error", err, "request_id", middleware.GetReqID(r.Context()))
	}
}
