package api

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
)

// MeasurementLog captures and lists operator snapshots.
type MeasurementLog interface {
	Capture(posture.Submission) (posture.Record, error)
	CaptureMeasurement(posture.Measurement) (posture.Record, error)
	History() []posture.Record
	Clear() error
}

// LiveSource provides the most recent live measurement, nil when there is none.
type LiveSource interface {
	LatestMeasurement() *posture.Measurement
}

// MeasurementsHandler serves /api/measurements and /api/measurements/live.
type MeasurementsHandler struct {
	log  MeasurementLog
	live LiveSource
}

type historyResponse struct {
	Measurements []posture.Record `json:"measurements"`
}

type captureResponse struct {
	Success     bool           `json:"success"`
	Measurement posture.Record `json:"measurement"`
}

// NewMeasurementsHandler creates a MeasurementsHandler. live may be nil, in which case
// capturing the live reading is unavailable.
func NewMeasurementsHandler(l MeasurementLog, live LiveSource) *MeasurementsHandler {
	return &MeasurementsHandler{log: l, live: live}
}

// ServeHTTP routes:
//
//	GET    /api/measurements       history, newest first
//	POST   /api/measurements       capture a submitted measurement
//	DELETE /api/measurements       clear history
//	POST   /api/measurements/live  capture the current live reading
func (h *MeasurementsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/measurements")
	path = strings.Trim(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.history(w)
	case path == "" && r.Method == http.MethodPost:
		h.capture(w, r)
	case path == "" && r.Method == http.MethodDelete:
		h.clear(w)
	case path == "live" && r.Method == http.MethodPost:
		h.captureLive(w)
	case path == "" || path == "live":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *MeasurementsHandler) history(w http.ResponseWriter) {
	records := h.log.History()
	if records == nil {
		records = []posture.Record{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Measurements: records})
}

func (h *MeasurementsHandler) capture(w http.ResponseWriter, r *http.Request) {
	var s posture.Submission
	if err := decode(r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := h.log.Capture(s)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, captureResponse{Success: true, Measurement: rec})
}

func (h *MeasurementsHandler) captureLive(w http.ResponseWriter) {
	if h.live == nil {
		writeError(w, http.StatusServiceUnavailable, "Live capture not available")
		return
	}
	m := h.live.LatestMeasurement()
	if m == nil {
		writeError(w, http.StatusConflict, "No live measurement")
		return
	}

	rec, err := h.log.CaptureMeasurement(*m)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, captureResponse{Success: true, Measurement: rec})
}

func (h *MeasurementsHandler) clear(w http.ResponseWriter) {
	if err := h.log.Clear(); err != nil {
		log.Error().Err(err).Msg("clear history failed")
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
