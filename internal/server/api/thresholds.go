package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/posturecam/internal/posture"
)

// ThresholdStore is the threshold state the handler reads and updates.
type ThresholdStore interface {
	Get() posture.Thresholds
	Update(posture.ThresholdUpdate) (posture.Thresholds, error)
}

// ThresholdsHandler serves /api/thresholds.
type ThresholdsHandler struct {
	store ThresholdStore
}

// NewThresholdsHandler creates a ThresholdsHandler backed by s.
func NewThresholdsHandler(s ThresholdStore) *ThresholdsHandler {
	return &ThresholdsHandler{store: s}
}

// ServeHTTP returns the thresholds on GET and applies a partial update on PUT or POST.
func (h *ThresholdsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.store.Get())
	case http.MethodPut, http.MethodPost:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ThresholdsHandler) update(w http.ResponseWriter, r *http.Request) {
	var u posture.ThresholdUpdate
	if err := decode(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.store.Update(u)
	if err != nil {
		log.Warn().Err(err).Msg("threshold update rejected")
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
