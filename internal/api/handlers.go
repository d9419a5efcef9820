package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/report"
	"github.com/nodescope/area-compare/internal/store"
)

const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return requestError("invalid request body: " + err.Error())
	}
	return nil
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *server) event(w http.ResponseWriter, r *http.Request, ev compare.Event) {
	snap, err := s.ctrl.Dispatch(r.Context(), ev)
	if err != nil {
		s.failWithState(w, r, err, snap)
		return
	}
	status := http.StatusOK
	if ev.Type == compare.EventCompare {
		status = http.StatusAccepted
	}
	writeJSON(w, status, snap)
}

func (s *server) dispatch(w http.ResponseWriter, r *http.Request) {
	var ev compare.Event
	if err := decode(w, r, &ev); err != nil {
		s.fail(w, r, err)
		return
	}
	if ev.Type == "" {
		s.fail(w, r, requestError("type is required"))
		return
	}
	s.event(w, r, ev)
}

func (s *server) loadCity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		City string `json:"city"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.City == "" {
		s.fail(w, r, requestError("city is required"))
		return
	}
	s.event(w, r, compare.Event{Type: compare.EventLoadCity, City: req.City})
}

func (s *server) toggleArea(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, compare.Event{Type: compare.EventToggleArea, AreaID: chi.URLParam(r, "id")})
}

func (s *server) compare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Profile *model.Profile `json:"profile"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.event(w, r, compare.Event{Type: compare.EventCompare, Profile: req.Profile})
}

func (s *server) toggleChart(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, compare.Event{Type: compare.EventToggleChart})
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	s.event(w, r, compare.Event{Type: compare.EventReset})
}

// chartFor resolves the ?kind= query, defaulting to the active chart.
func (s *server) chartFor(r *http.Request) (chart.Chart, error) {
	q := r.URL.Query().Get("kind")
	if q == "" {
		return s.ctrl.ActiveChart(), nil
	}
	kind, err := chart.ParseKind(q)
	if err != nil {
		return nil, requestError(err.Error())
	}
	return s.ctrl.Chart(kind), nil
}

func (s *server) chartSVG(w http.ResponseWriter, r *http.Request) {
	ch, err := s.chartFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := ch.EncodeSVG(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *server) chartPNG(w http.ResponseWriter, r *http.Request) {
	ch, err := s.chartFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := ch.EncodePNG(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *server) hoverEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string  `json:"kind"`
		Series int     `json:"series"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ch := s.ctrl.ActiveChart()
	if req.Kind != "" {
		kind, err := chart.ParseKind(req.Kind)
		if err != nil {
			s.fail(w, r, requestError(err.Error()))
			return
		}
		ch = s.ctrl.Chart(kind)
	}
	if err := ch.PointerEnter(req.Series, req.X, req.Y); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) hoverLeave(w http.ResponseWriter, r *http.Request) {
	ch, err := s.chartFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ch.PointerLeave()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) mapGeoJSON(w http.ResponseWriter, r *http.Request) {
	if s.layer == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "map layer not configured"})
		return
	}
	data, err := s.layer.GeoJSON()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data) //nolint:errcheck
}

func (s *server) comparison(w http.ResponseWriter, r *http.Request) {
	cmp := s.ctrl.Last()
	if cmp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no comparison yet"})
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	cmp := s.ctrl.Last()
	if cmp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no comparison yet"})
		return
	}
	format := report.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatYAML
	}
	contentType := map[report.Format]string{
		report.FormatYAML: "application/yaml",
		report.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}[format]
	if contentType == "" {
		s.fail(w, r, requestError("format must be yaml or xlsx"))
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, report.New(cmp)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="comparison-`+cmp.RunID+`.`+string(format)+`"`)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run store not configured"})
		return
	}
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		AreaID: q.Get("area"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		s.fail(w, r, err)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run store not configured"})
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, requestError("invalid integer " + strconv.Quote(v))
	}
	return n, nil
}
