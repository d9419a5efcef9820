// Package compare drives the two-area comparison workflow: loading a city's
// neighbourhoods, selecting two of them, sampling both and pushing the
// results into the active chart.
package compare

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/geo"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/sampler"
	"github.com/nodescope/area-compare/internal/selection"
	"github.com/nodescope/area-compare/internal/store"
	"github.com/nodescope/area-compare/pkg/analysis"
)

var (
	// ErrSelectionSize is returned when Compare is called without exactly 2 selected areas.
	ErrSelectionSize = eris.New("select exactly 2 areas to compare")
	// ErrBusy is returned when a comparison is already running.
	ErrBusy = eris.New("a comparison is already running")
	// ErrUnknownArea is returned for an area id not loaded in this session.
	ErrUnknownArea = eris.New("unknown area")
	// ErrNoAreas is returned when a city has no usable neighbourhoods.
	ErrNoAreas = eris.New("no neighbourhoods found")
)

// State is the controller's workflow state.
type State int

const (
	Idle State = iota
	Sampling
)

func (s State) String() string {
	if s == Sampling {
		return "sampling"
	}
	return "idle"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Backend is the subset of the analysis client the controller needs.
type Backend interface {
	ListNeighbourhoods(ctx context.Context, city string) ([]analysis.Neighbourhood, error)
	ComputePointMetrics(ctx context.Context, coords model.Coordinates, profile model.Profile) (*model.PointMetrics, error)
}

// Options configures a Controller. Nil collaborators are replaced by no-ops.
type Options struct {
	Store    store.Store
	Layer    mapview.Layer
	Notifier Notifier

	MaxPoints       int
	Concurrency     int
	AreaConcurrency int
	GridSpacing     float64
	CacheTTL        time.Duration

	// Profile is used by compare events that carry none.
	Profile model.Profile

	Chart       chart.Options
	DefaultKind chart.Kind
}

// Comparison is the outcome of one finished run.
type Comparison struct {
	RunID      string              `json:"run_id"`
	City       string              `json:"city,omitempty"`
	Profile    model.Profile       `json:"profile"`
	Areas      [2]model.Area       `json:"areas"`
	Results    [2]sampler.Result   `json:"results"`
	Series     []model.ChartSeries `json:"series"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// RunHandle tracks an in-flight comparison.
type RunHandle struct {
	ID   string
	done chan struct{}
	res  *Comparison
	err  error
}

// Done is closed when the run finishes, fails or is cancelled.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run ends and returns its comparison.
func (h *RunHandle) Wait() (*Comparison, error) {
	<-h.done
	return h.res, h.err
}

type activeRun struct {
	id      string
	cancel  context.CancelFunc
	started time.Time
}

// Controller owns the session state. One mutex serializes every event;
// sampling happens outside the lock and its results land only while the
// run is still current.
type Controller struct {
	backend  Backend
	store    store.Store
	layer    mapview.Layer
	notifier Notifier
	sampler  *sampler.Sampler
	opts     Options
	notes    history
	log      *zap.Logger

	mu        sync.Mutex
	selection *selection.Set
	city      string
	areas     map[string]model.Area
	order     []string
	state     State
	run       *activeRun
	progress  [selection.Capacity]sampler.Progress
	charts    map[chart.Kind]chart.Chart
	active    chart.Kind
	series    []model.ChartSeries
	last      *Comparison

	wg sync.WaitGroup
}

// New builds a controller with both charts showing the default series.
func New(backend Backend, opts Options) (*Controller, error) {
	if backend == nil {
		return nil, eris.New("compare: backend is required")
	}
	if opts.Layer == nil {
		opts.Layer = mapview.Nop{}
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.AreaConcurrency < 1 || opts.AreaConcurrency > selection.Capacity {
		opts.AreaConcurrency = 1
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = sampler.DefaultMaxPoints
	}
	if opts.GridSpacing <= 0 {
		opts.GridSpacing = geo.DefaultGridSpacing
	}

	c := &Controller{
		backend:  backend,
		store:    opts.Store,
		layer:    opts.Layer,
		notifier: opts.Notifier,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "compare")),
		sampler: sampler.New(backend, sampler.Options{
			MaxPoints:   opts.MaxPoints,
			Concurrency: opts.Concurrency,
			Markers:     opts.Layer,
		}),
		selection: selection.New(opts.Layer),
		areas:     make(map[string]model.Area),
		charts:    make(map[chart.Kind]chart.Chart, 2),
		active:    opts.DefaultKind,
		series:    model.DefaultSeries(),
	}
	for _, kind := range []chart.Kind{chart.Radial, chart.Parallel} {
		ch, err := chart.New(kind, opts.Chart, model.DefaultSeries())
		if err != nil {
			return nil, eris.Wrapf(err, "compare: build %s chart", kind)
		}
		c.charts[kind] = ch
	}
	return c, nil
}

func (c *Controller) notify(level Level, msg string) {
	c.deliver(&outbox{{Level: level, Message: msg, Time: time.Now().UTC()}})
}

// deliver records and sends queued notifications. c.mu must not be held.
func (c *Controller) deliver(o *outbox) {
	for _, n := range *o {
		c.notes.add(n)
		c.notifier.Notify(n)
	}
}

// LoadCity fetches a city's neighbourhoods, from the store cache when fresh,
// and replaces the session's areas with them. Any running comparison is
// cancelled and the selection is cleared.
func (c *Controller) LoadCity(ctx context.Context, city string) ([]model.Area, error) {
	display := geo.CityDisplay(city)
	if display == "" {
		return nil, eris.New("compare: city is required")
	}

	areas, err := c.fetchAreas(ctx, display)
	if err != nil {
		c.notify(LevelError, "could not load neighbourhoods for "+display)
		return nil, err
	}
	if len(areas) == 0 {
		c.notify(LevelWarning, "no neighbourhoods found for "+display)
		return nil, eris.Wrapf(ErrNoAreas, "compare: city %s", display)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelRunLocked()
	c.clearAreasLocked()

	c.city = display
	for _, a := range areas {
		c.areas[a.ID] = a
		c.order = append(c.order, a.ID)
		c.layer.DrawPolygon(a, a.Color)
	}
	c.layer.FitToBounds(areas)
	c.log.Info("city loaded", zap.String("city", display), zap.Int("areas", len(areas)))
	return cloneAreas(areas), nil
}

func (c *Controller) fetchAreas(ctx context.Context, city string) ([]model.Area, error) {
	if c.store != nil {
		cached, err := c.store.GetNeighbourhoods(ctx, city)
		if err != nil {
			c.log.Warn("neighbourhood cache read failed", zap.String("city", city), zap.Error(err))
		} else if cached != nil && len(cached.Areas) > 0 {
			c.log.Debug("neighbourhood cache hit", zap.String("city", city))
			return cached.Areas, nil
		}
	}

	ns, err := c.backend.ListNeighbourhoods(ctx, city)
	if err != nil {
		return nil, eris.Wrapf(err, "compare: list neighbourhoods for %s", city)
	}
	areas := geo.BuildAreas(ns, geo.BuildOptions{MaxPoints: c.opts.MaxPoints, GridSpacing: c.opts.GridSpacing})

	if c.store != nil && len(areas) > 0 && c.opts.CacheTTL > 0 {
		if err := c.store.PutNeighbourhoods(ctx, city, areas, c.opts.CacheTTL); err != nil {
			c.log.Warn("neighbourhood cache write failed", zap.String("city", city), zap.Error(err))
		}
	}
	return areas, nil
}

// ToggleArea adds or removes an area from the selection. A full selection is
// reported as a warning and returned as selection.ErrCapacity.
func (c *Controller) ToggleArea(id string) (selection.Change, error) {
	var out outbox
	defer c.deliver(&out)
	c.mu.Lock()
	defer c.mu.Unlock()

	area, ok := c.areas[id]
	if !ok {
		out.add(LevelWarning, "unknown area "+id)
		return 0, eris.Wrapf(ErrUnknownArea, "compare: area %s", id)
	}
	change, err := c.selection.Toggle(area)
	if err != nil {
		out.add(LevelWarning, selection.ErrCapacity.Error())
		return 0, err
	}
	return change, nil
}

// StartCompare validates the selection and starts sampling both areas in the
// background. The run outlives ctx's cancellation; use Cancel or Reset to stop it.
func (c *Controller) StartCompare(ctx context.Context, profile model.Profile) (*RunHandle, error) {
	if err := profile.Validate(); err != nil {
		c.notify(LevelError, err.Error())
		return nil, err
	}

	c.mu.Lock()
	if c.selection.Len() != selection.Capacity {
		c.mu.Unlock()
		c.notify(LevelError, ErrSelectionSize.Error())
		return nil, eris.Wrapf(ErrSelectionSize, "compare: %d selected", c.selection.Len())
	}
	if c.state == Sampling {
		c.mu.Unlock()
		c.notify(LevelWarning, ErrBusy.Error())
		return nil, ErrBusy
	}

	selected := c.selection.Areas()
	areas := [2]model.Area{selected[0], selected[1]}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &RunHandle{ID: uuid.NewString(), done: make(chan struct{})}
	run := &activeRun{id: h.ID, cancel: cancel, started: time.Now().UTC()}

	c.run = run
	c.state = Sampling
	c.progress = [selection.Capacity]sampler.Progress{}
	c.layer.ClearMarkers()
	city := c.city
	c.mu.Unlock()

	c.recordRun(runCtx, model.Run{ID: h.ID, AreaIDs: [2]string{areas[0].ID, areas[1].ID}, Profile: profile, Status: model.RunStatusSampling})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(h.done)
		defer cancel()
		c.execute(runCtx, h, run, city, areas, profile)
	}()
	return h, nil
}

// Compare runs a comparison to completion. Cancelling ctx cancels the run.
func (c *Controller) Compare(ctx context.Context, profile model.Profile) (*Comparison, error) {
	h, err := c.StartCompare(ctx, profile)
	if err != nil {
		return nil, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		c.Cancel(h.ID)
		<-h.Done()
	}
	return h.Wait()
}

func (c *Controller) execute(ctx context.Context, h *RunHandle, run *activeRun, city string, areas [2]model.Area, profile model.Profile) {
	log := c.log.With(zap.String("run_id", h.ID))
	log.Info("comparison started", zap.String("area_1", areas[0].ID), zap.String("area_2", areas[1].ID))

	var results [2]sampler.Result
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.AreaConcurrency)
	for slot := range areas {
		g.Go(func() error {
			res, err := c.sampler.SampleArea(gctx, areas[slot], profile, func(p sampler.Progress) {
				c.setProgress(h.ID, slot, p)
			})
			if err != nil {
				return err
			}
			results[slot] = res
			return nil
		})
	}
	err := g.Wait()

	series := make([]model.ChartSeries, len(areas))
	for slot := range areas {
		series[slot] = model.NewSeries(model.SlotLabel(slot), results[slot].Vector)
	}
	cmp := &Comparison{
		RunID:      h.ID,
		City:       city,
		Profile:    profile,
		Areas:      areas,
		Results:    results,
		Series:     series,
		StartedAt:  run.started,
		FinishedAt: time.Now().UTC(),
	}

	status, msg := c.finish(run, cmp, err)
	c.updateRun(ctx, h.ID, status, msg)
	log.Info("comparison finished", zap.String("status", string(status)), zap.Duration("took", cmp.FinishedAt.Sub(cmp.StartedAt)))

	switch status {
	case model.RunStatusComplete:
		h.res = cmp
	case model.RunStatusCancelled:
		h.err = eris.Wrapf(context.Canceled, "compare: run %s cancelled", h.ID)
	default:
		h.res = cmp
		h.err = eris.Errorf("compare: run %s: %s", h.ID, msg)
	}
}

// finish applies a run's outcome if the run is still current.
func (c *Controller) finish(run *activeRun, cmp *Comparison, err error) (model.RunStatus, string) {
	var out outbox
	defer c.deliver(&out)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != run {
		return model.RunStatusCancelled, "superseded"
	}
	c.run = nil
	c.state = Idle

	if err != nil {
		out.add(LevelInfo, "comparison cancelled")
		return model.RunStatusCancelled, err.Error()
	}

	if err := c.charts[c.active].UpdateData(cmp.Series); err != nil {
		out.add(LevelError, "could not render comparison")
		return model.RunStatusFailed, err.Error()
	}
	c.series = model.CloneSeries(cmp.Series)
	c.last = cmp

	failed := 0
	for slot, res := range cmp.Results {
		switch res.Outcome {
		case sampler.Failed:
			failed++
			out.add(LevelWarning, "every sample point failed for "+model.SlotLabel(slot))
		case sampler.NoData:
			out.add(LevelWarning, "no data available for "+model.SlotLabel(slot))
		case sampler.Partial:
			out.add(LevelInfo, "some sample points failed for "+model.SlotLabel(slot))
		}
	}
	if failed == len(cmp.Results) {
		return model.RunStatusFailed, "every sample point failed"
	}
	out.add(LevelInfo, "comparison complete")
	return model.RunStatusComplete, ""
}

func (c *Controller) setProgress(runID string, slot int, p sampler.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil || c.run.id != runID {
		return
	}
	c.progress[slot] = p
}

// Cancel stops the run with the given id if it is still current.
func (c *Controller) Cancel(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil || c.run.id != runID {
		return false
	}
	c.cancelRunLocked()
	return true
}

func (c *Controller) cancelRunLocked() {
	if c.run == nil {
		return
	}
	c.log.Info("cancelling comparison", zap.String("run_id", c.run.id))
	c.run.cancel()
	c.run = nil
	c.state = Idle
}

// ToggleChartType switches the active chart. Data is untouched; the other
// chart keeps its last render.
func (c *Controller) ToggleChartType() chart.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = c.active.Other()
	return c.active
}

// Reset cancels any running comparison and returns the session to its
// initial state: no selection, no areas, no markers and default chart data.
func (c *Controller) Reset() {
	var out outbox
	defer c.deliver(&out)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRunLocked()
	c.clearAreasLocked()
	c.city = ""
	c.last = nil
	c.series = model.DefaultSeries()
	for kind, ch := range c.charts {
		if err := ch.UpdateData(model.DefaultSeries()); err != nil {
			c.log.Error("chart reset failed", zap.Stringer("kind", kind), zap.Error(err))
		}
	}
	out.add(LevelInfo, "session reset")
}

func (c *Controller) clearAreasLocked() {
	c.selection.Clear()
	c.layer.ClearMarkers()
	for _, id := range c.order {
		c.layer.RemovePolygon(id)
	}
	c.areas = make(map[string]model.Area)
	c.order = nil
	c.progress = [selection.Capacity]sampler.Progress{}
}

// Chart returns the chart of the given kind.
func (c *Controller) Chart(kind chart.Kind) chart.Chart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charts[kind]
}

// ActiveChart returns the chart currently shown.
func (c *Controller) ActiveChart() chart.Chart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charts[c.active]
}

// Area looks up a loaded area.
func (c *Controller) Area(id string) (model.Area, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.areas[id]
	return a, ok
}

// Last returns the most recent comparison that reached the charts.
func (c *Controller) Last() *Comparison {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close cancels any running comparison and waits for it to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelRunLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) recordRun(ctx context.Context, run model.Run) {
	if c.store == nil {
		return
	}
	if _, err := c.store.CreateRun(ctx, run); err != nil {
		c.log.Warn("record run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (c *Controller) updateRun(ctx context.Context, runID string, status model.RunStatus, msg string) {
	if c.store == nil {
		return
	}
	// The run context may already be cancelled; the status still has to land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.store.UpdateRunStatus(ctx, runID, status, msg); err != nil {
		c.log.Warn("update run status failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func cloneAreas(in []model.Area) []model.Area {
	out := make([]model.Area, len(in))
	copy(out, in)
	return out
}
