// Package api provides the HTTP API handlers for posturecam.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/posturecam/internal/capture"
	"github.com/ayusman/posturecam/internal/posture"
	"github.com/ayusman/posturecam/internal/report"
)

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps err to a status code and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised, including
// persistence failures, is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, posture.ErrInvalidSubmission),
		errors.Is(err, posture.ErrInvalidThresholds),
		errors.Is(err, capture.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrRendererNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v. An empty body is a bad request.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errBadRequest
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
