package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/report"
)

// RendererRegistry looks up report renderers.
type RendererRegistry interface {
	Get(name string) (*report.Renderer, error)
	List() []*report.Renderer
}

// DocumentRenderer runs a renderer over a report request.
type DocumentRenderer interface {
	Render(ctx context.Context, r *report.Renderer, req *report.Request, now time.Time) (*report.Document, error)
}

// HistorySource provides the measurement history, newest first.
type HistorySource interface {
	History() []posture.Record
}

// ThresholdSource provides the current thresholds.
type ThresholdSource interface {
	Get() posture.Thresholds
}

// ReportHandler serves /api/report and /api/report/renderers.
type ReportHandler struct {
	renderers  RendererRegistry
	runner     DocumentRenderer
	history    HistorySource
	thresholds ThresholdSource
	now        func() time.Time
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(renderers RendererRegistry, runner DocumentRenderer, history HistorySource, thresholds ThresholdSource) *ReportHandler {
	return &ReportHandler{
		renderers:  renderers,
		runner:     runner,
		history:    history,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// ServeHTTP renders the report as an attachment. The renderer is chosen with ?format=name,
// defaulting to the first discovered renderer.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/report"), "/") {
	case "":
		h.render(w, r)
	case "renderers":
		h.list(w)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *ReportHandler) list(w http.ResponseWriter) {
	out := make([]report.Manifest, 0)
	for _, r := range h.renderers.List() {
		out = append(out, r.Manifest)
	}
	writeJSON(w, http.StatusOK, map[string][]report.Manifest{"renderers": out})
}

func (h *ReportHandler) render(w http.ResponseWriter, r *http.Request) {
	renderer, err := h.renderers.Get(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, err)
		return
	}

	now := h.now()
	req := report.Build(h.history.History(), h.thresholds.Get(), now)
	doc, err := h.runner.Render(r.Context(), renderer, &req, now)
	if err != nil {
		log.Error().Err(err).Str("renderer", renderer.Manifest.Name).Msg("report generation failed")
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Data)
}
