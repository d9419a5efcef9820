package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/selection"
	"github.com/nodescope/area-compare/internal/store"
)

// requestError is malformed client input.
type requestError string

func (e requestError) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var re requestError
	switch {
	case errors.As(err, &re), eris.Is(err, compare.ErrUnknownEvent):
		return http.StatusBadRequest
	case eris.Is(err, compare.ErrUnknownArea), eris.Is(err, compare.ErrNoAreas), eris.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case eris.Is(err, compare.ErrBusy):
		return http.StatusConflict
	case eris.Is(err, compare.ErrSelectionSize), eris.Is(err, selection.ErrCapacity),
		eris.Is(err, chart.ErrNoSuchSeries), eris.Is(err, chart.ErrAxisMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// message strips wrapping so clients see the user-facing text.
func message(err error) string {
	var re requestError
	if errors.As(err, &re) {
		return string(re)
	}
	if statusFor(err) < http.StatusInternalServerError {
		return eris.Cause(err).Error()
	}
	return err.Error()
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": message(err)})
}

// failWithState is used for events: the body carries the error and the
// resulting session snapshot.
func (s *server) failWithState(w http.ResponseWriter, r *http.Request, err error, snap compare.Snapshot) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("event failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, struct {
		Error string           `json:"error"`
		State compare.Snapshot `json:"state"`
	}{message(err), snap})
}
