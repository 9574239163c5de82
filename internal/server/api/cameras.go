package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/capture"
)

// DefaultProbe is the number of device indices probed when listing cameras.
const DefaultProbe = 5

// CameraControl lists, selects and reports on video sources.
type CameraControl interface {
	ListSources(ctx context.Context, max int) ([]int, error)
	SelectSource(ctx context.Context, kind capture.Kind, index *int) error
	Status() capture.Status
}

// CamerasHandler serves /api/cameras, /api/cameras/select and /api/cameras/status.
type CamerasHandler struct {
	control CameraControl
}

type listCamerasResponse struct {
	AvailableIndices []int `json:"available_indices"`
}

type selectCameraRequest struct {
	CameraType  string `json:"camera_type"`
	CameraIndex *int   `json:"camera_index"`
}

type selectCameraResponse struct {
	CameraType  capture.Kind   `json:"camera_type"`
	CameraIndex *int           `json:"camera_index"`
	Status      capture.Status `json:"status"`
	Error       string         `json:"error,omitempty"`
}

// NewCamerasHandler creates a CamerasHandler driving c.
func NewCamerasHandler(c CameraControl) *CamerasHandler {
	return &CamerasHandler{control: c}
}

// ServeHTTP implements http.Handler.
func (h *CamerasHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/cameras"), "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case "select":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.selectSource(w, r)
	case "status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.control.Status())
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *CamerasHandler) list(w http.ResponseWriter, r *http.Request) {
	max := DefaultProbe
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		max = n
	}

	indices, err := h.control.ListSources(r.Context(), max)
	if err != nil {
		writeErr(w, err)
		return
	}
	if indices == nil {
		indices = []int{}
	}
	writeJSON(w, http.StatusOK, listCamerasResponse{AvailableIndices: indices})
}

func (h *CamerasHandler) selectSource(w http.ResponseWriter, r *http.Request) {
	var req selectCameraRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "No JSON body provided")
		return
	}
	if req.CameraType == "" {
		req.CameraType = string(capture.KindPC)
	}

	kind, err := capture.ParseKind(req.CameraType)
	if err != nil {
		writeErr(w, err)
		return
	}

	err = h.control.SelectSource(r.Context(), kind, req.CameraIndex)
	resp := selectCameraResponse{
		CameraType:  kind,
		CameraIndex: req.CameraIndex,
		Status:      h.control.Status(),
	}
	if err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("camera selection failed")
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	log.Info().Str("kind", string(kind)).Int("index", resp.Status.Index).Msg("camera selected")
	writeJSON(w, http.StatusOK, resp)
}
