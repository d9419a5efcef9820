package compare

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodescope/area-compare/internal/chart"
	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/internal/selection"
	"github.com/nodescope/area-compare/internal/store"
	"github.com/nodescope/area-compare/pkg/analysis"
	"github.com/nodescope/area-compare/pkg/analysis/mocks"
)

var testProfile = model.Profile{Minutes: 15, Velocity: 5, Categories: []string{"food"}}

func ptr(v float64) *float64 { return &v }

func metrics(p, d, e, a, c float64) *model.PointMetrics {
	return &model.PointMetrics{ProximityScore: ptr(p), DensityScore: ptr(d), EntropyScore: ptr(e), PoiAccessibility: ptr(a), Closeness: ptr(c)}
}

func neighbourhood(id string, lat float64) analysis.Neighbourhood {
	return analysis.Neighbourhood{
		ID: analysis.ID(id),
		Coordinates: [][]model.LatLon{{
			{lat, 7}, {lat, 7.01}, {lat + 0.01, 7.01}, {lat + 0.01, 7},
		}},
		Properties:   map[string]any{"name": "Zone " + id},
		SamplePoints: []model.LatLon{{lat + 0.005, 7.005}},
	}
}

func samplePoint(lat float64) model.Coordinates {
	return model.Coordinates{Lat: lat + 0.005, Lon: 7.005}
}

type collector struct {
	mu    sync.Mutex
	notes []Notification
}

func (c *collector) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *collector) last() Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notes) == 0 {
		return Notification{}
	}
	return c.notes[len(c.notes)-1]
}

type fixture struct {
	ctrl   *Controller
	client *mocks.MockClient
	layer  *mapview.Recorder
	notes  *collector
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	client := mocks.NewMockClient(t)
	f := &fixture{client: client, layer: mapview.NewRecorder(), notes: &collector{}}
	opts := Options{Layer: f.layer, Notifier: f.notes, Profile: testProfile}
	if mutate != nil {
		mutate(&opts)
	}
	ctrl, err := New(client, opts)
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	f.ctrl = ctrl
	return f
}

func (f *fixture) loadCity(t *testing.T) {
	t.Helper()
	f.client.On("ListNeighbourhoods", mock.Anything, "Torino").
		Return([]analysis.Neighbourhood{neighbourhood("a", 45.0), neighbourhood("b", 45.1), neighbourhood("c", 45.2)}, nil).Once()
	areas, err := f.ctrl.LoadCity(context.Background(), "  torino ")
	require.NoError(t, err)
	require.Len(t, areas, 3)
}

func (f *fixture) selectAB(t *testing.T) {
	t.Helper()
	_, err := f.ctrl.ToggleArea("a")
	require.NoError(t, err)
	_, err = f.ctrl.ToggleArea("b")
	require.NoError(t, err)
}

func TestNew_DefaultCharts(t *testing.T) {
	f := newFixture(t, nil)
	for _, kind := range []chart.Kind{chart.Radial, chart.Parallel} {
		assert.Equal(t, model.DefaultSeries(), f.ctrl.Chart(kind).Series())
	}
	assert.Equal(t, chart.Radial, f.ctrl.ActiveChart().Kind())
	assert.Equal(t, Idle, f.ctrl.Snapshot().State)
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestLoadCity_DrawsAndFits(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)

	state := f.layer.Snapshot()
	require.Len(t, state.Polygons, 3)
	assert.Equal(t, "a", state.Polygons[0].Area.ID)
	assert.Equal(t, "Zone a", state.Polygons[0].Area.Name)
	assert.NotNil(t, state.Bounds)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, "Torino", snap.City)
	assert.Len(t, snap.Areas, 3)
	assert.Empty(t, snap.Selection)
}

func TestLoadCity_ReplacesPreviousAreas(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)

	f.client.On("ListNeighbourhoods", mock.Anything, "Milano").
		Return([]analysis.Neighbourhood{neighbourhood("m", 45.4)}, nil).Once()
	_, err := f.ctrl.LoadCity(context.Background(), "milano")
	require.NoError(t, err)

	state := f.layer.Snapshot()
	require.Len(t, state.Polygons, 1)
	assert.Equal(t, "m", state.Polygons[0].Area.ID)
	assert.Empty(t, f.ctrl.Snapshot().Selection)

	_, err = f.ctrl.ToggleArea("a")
	assert.True(t, eris.Is(err, ErrUnknownArea))
}

func TestLoadCity_NoAreas(t *testing.T) {
	f := newFixture(t, nil)
	f.client.On("ListNeighbourhoods", mock.Anything, "Nowhere").Return([]analysis.Neighbourhood{}, nil).Once()

	_, err := f.ctrl.LoadCity(context.Background(), "nowhere")
	assert.True(t, eris.Is(err, ErrNoAreas))
	assert.Equal(t, LevelWarning, f.notes.last().Level)
}

func TestLoadCity_UsesStoreCache(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := newFixture(t, func(o *Options) {
		o.Store = st
		o.CacheTTL = time.Hour
	})
	// The backend is hit once; the second load comes from the cache.
	f.loadCity(t)
	areas, err := f.ctrl.LoadCity(context.Background(), "TORINO")
	require.NoError(t, err)
	assert.Len(t, areas, 3)
}

func TestLoadCity_EmptyCacheEntryIsMiss(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.PutNeighbourhoods(context.Background(), "torino", []model.Area{}, time.Hour))

	f := newFixture(t, func(o *Options) {
		o.Store = st
		o.CacheTTL = time.Hour
	})
	// The empty entry must not hide the backend.
	f.loadCity(t)

	cached, err := st.GetNeighbourhoods(context.Background(), "torino")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Len(t, cached.Areas, 3)
}

func TestToggleArea_CapacityWarning(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)

	_, err := f.ctrl.ToggleArea("c")
	assert.True(t, eris.Is(err, selection.ErrCapacity))
	assert.Equal(t, []string{"a", "b"}, f.ctrl.Snapshot().Selection)
	assert.Equal(t, LevelWarning, f.notes.last().Level)
	assert.Equal(t, selection.ErrCapacity.Error(), f.notes.last().Message)

	change, err := f.ctrl.ToggleArea("a")
	require.NoError(t, err)
	assert.Equal(t, selection.Removed, change)
	assert.Equal(t, []string{"b"}, f.ctrl.Snapshot().Selection)
}

func TestCompare_NeedsTwoAreas(t *testing.T) {
	for _, n := range []int{0, 1} {
		f := newFixture(t, nil)
		f.loadCity(t)
		if n == 1 {
			_, err := f.ctrl.ToggleArea("a")
			require.NoError(t, err)
		}

		_, err := f.ctrl.Compare(context.Background(), testProfile)
		assert.True(t, eris.Is(err, ErrSelectionSize), "selected %d", n)
		assert.Equal(t, LevelError, f.notes.last().Level)
		assert.Equal(t, ErrSelectionSize.Error(), f.notes.last().Message)
		f.client.AssertNotCalled(t, "ComputePointMetrics", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestCompare_InvalidProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)

	_, err := f.ctrl.Compare(context.Background(), model.Profile{Minutes: 0, Velocity: 5})
	assert.Error(t, err)
	f.client.AssertNotCalled(t, "ComputePointMetrics", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompare_LabelsFollowSlotOrder(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.AreaConcurrency = 2 })
	f.loadCity(t)
	f.selectAB(t)

	secondDone := make(chan struct{})
	// Area 1 finishes only after area 2 has answered.
	f.client.On("ComputePointMetrics", mock.Anything, samplePoint(45.0), testProfile).
		Return(func(ctx context.Context, _ model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
			select {
			case <-secondDone:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return metrics(0.1, 0.2, 0.3, 0.4, 0.5), nil
		}, nil).Once()
	f.client.On("ComputePointMetrics", mock.Anything, samplePoint(45.1), testProfile).
		Return(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
			defer close(secondDone)
			return metrics(0.9, 0.8, 0.7, 0.6, 0.5), nil
		}, nil).Once()

	cmp, err := f.ctrl.Compare(context.Background(), testProfile)
	require.NoError(t, err)
	require.Len(t, cmp.Series, 2)
	assert.Equal(t, "area 1", cmp.Series[0].Label)
	assert.Equal(t, "area 2", cmp.Series[1].Label)
	assert.InDelta(t, 0.1, cmp.Series[0].Axes[0].Value, 1e-9)
	assert.InDelta(t, 0.9, cmp.Series[1].Axes[0].Value, 1e-9)
	assert.Equal(t, "a", cmp.Areas[0].ID)

	assert.Equal(t, cmp.Series, f.ctrl.Chart(chart.Radial).Series())
	assert.Equal(t, model.DefaultSeries(), f.ctrl.Chart(chart.Parallel).Series())

	snap := f.ctrl.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, "1/1", snap.Progress[0].String())
	assert.Equal(t, "1/1", snap.Progress[1].String())
	assert.Same(t, cmp, f.ctrl.Last())

	markers := f.layer.Snapshot().Markers
	require.Len(t, markers, 2)
	for _, m := range markers {
		assert.Equal(t, mapview.MarkerSuccess, m.Color)
	}
}

func TestCompare_ActiveChartOnly(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)
	assert.Equal(t, chart.Parallel, f.ctrl.ToggleChartType())

	f.client.On("ComputePointMetrics", mock.Anything, mock.Anything, testProfile).Return(metrics(0.5, 0.5, 0.5, 0.5, 0.5), nil).Twice()
	cmp, err := f.ctrl.Compare(context.Background(), testProfile)
	require.NoError(t, err)

	assert.Equal(t, cmp.Series, f.ctrl.Chart(chart.Parallel).Series())
	assert.Equal(t, model.DefaultSeries(), f.ctrl.Chart(chart.Radial).Series())
}

func TestCompare_AllFailedRecordsFailure(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := newFixture(t, func(o *Options) { o.Store = st })
	f.loadCity(t)
	f.selectAB(t)

	f.client.On("ComputePointMetrics", mock.Anything, mock.Anything, testProfile).Return(nil, eris.New("backend down")).Twice()
	h, err := f.ctrl.StartCompare(context.Background(), testProfile)
	require.NoError(t, err)
	cmp, err := h.Wait()
	assert.Error(t, err)
	require.NotNil(t, cmp)

	// Missing dimensions render at the neutral value.
	for _, s := range cmp.Series {
		for _, a := range s.Axes {
			assert.Equal(t, model.NeutralValue, a.Value)
		}
	}

	run, err := st.GetRun(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, [2]string{"a", "b"}, run.AreaIDs)
}

func TestCompare_Busy(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)

	started := make(chan struct{})
	f.client.On("ComputePointMetrics", mock.Anything, samplePoint(45.0), testProfile).
		Return(func(ctx context.Context, _ model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil).Once()

	h, err := f.ctrl.StartCompare(context.Background(), testProfile)
	require.NoError(t, err)
	<-started
	assert.Equal(t, Sampling, f.ctrl.Snapshot().State)
	assert.Equal(t, h.ID, f.ctrl.Snapshot().RunID)

	_, err = f.ctrl.StartCompare(context.Background(), testProfile)
	assert.True(t, eris.Is(err, ErrBusy))

	assert.True(t, f.ctrl.Cancel(h.ID))
	_, err = h.Wait()
	assert.True(t, eris.Is(err, context.Canceled))
	assert.Equal(t, Idle, f.ctrl.Snapshot().State)
	assert.False(t, f.ctrl.Cancel(h.ID))

	markers := f.layer.Snapshot().Markers
	require.Len(t, markers, 1)
	assert.Equal(t, mapview.MarkerFailure, markers[0].Color)
}

func TestNotifier_MayCallBackIntoController(t *testing.T) {
	var ctrl *Controller
	var seen []State
	notifier := NotifierFunc(func(Notification) {
		seen = append(seen, ctrl.Snapshot().State)
	})

	f := newFixture(t, func(o *Options) { o.Notifier = notifier })
	ctrl = f.ctrl
	f.loadCity(t)
	f.selectAB(t)
	f.client.On("ComputePointMetrics", mock.Anything, mock.Anything, testProfile).Return(metrics(0.5, 0.5, 0.5, 0.5, 0.5), nil).Twice()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ctrl.ToggleArea("c")
		_, _ = ctrl.Compare(context.Background(), testProfile)
		ctrl.Reset()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller deadlocked inside a notifier callback")
	}

	require.Len(t, seen, 3)
	for _, st := range seen {
		assert.Equal(t, Idle, st)
	}
	notes := ctrl.Snapshot().Notifications
	require.Len(t, notes, 3)
	assert.Equal(t, "comparison complete", notes[1].Message)
	assert.Equal(t, "session reset", notes[2].Message)
}

func TestReset_DuringSamplingDropsLateResults(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	f := newFixture(t, func(o *Options) { o.Store = st })
	f.loadCity(t)
	f.selectAB(t)

	started := make(chan struct{})
	release := make(chan struct{})
	// The backend ignores cancellation and answers late.
	f.client.On("ComputePointMetrics", mock.Anything, samplePoint(45.0), testProfile).
		Return(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
			close(started)
			<-release
			return metrics(0.9, 0.9, 0.9, 0.9, 0.9), nil
		}, nil).Once()

	h, err := f.ctrl.StartCompare(context.Background(), testProfile)
	require.NoError(t, err)
	<-started
	f.ctrl.Reset()
	close(release)

	_, err = h.Wait()
	assert.True(t, eris.Is(err, context.Canceled))
	for _, kind := range []chart.Kind{chart.Radial, chart.Parallel} {
		assert.Equal(t, model.DefaultSeries(), f.ctrl.Chart(kind).Series())
	}
	assert.Nil(t, f.ctrl.Last())

	run, err := st.GetRun(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCancelled, run.Status)
}

func TestReset_RestoresDefaults(t *testing.T) {
	f := newFixture(t, nil)
	f.loadCity(t)
	f.selectAB(t)

	f.client.On("ComputePointMetrics", mock.Anything, mock.Anything, testProfile).Return(metrics(0.7, 0.7, 0.7, 0.7, 0.7), nil).Twice()
	_, err := f.ctrl.Compare(context.Background(), testProfile)
	require.NoError(t, err)

	f.ctrl.Reset()

	snap := f.ctrl.Snapshot()
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.Areas)
	assert.Equal(t, model.DefaultSeries(), snap.Series)
	for _, kind := range []chart.Kind{chart.Radial, chart.Parallel} {
		assert.Equal(t, model.DefaultSeries(), f.ctrl.Chart(kind).Series())
	}
	state := f.layer.Snapshot()
	assert.Empty(t, state.Polygons)
	assert.Empty(t, state.Markers)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t, nil)
	f.client.On("ListNeighbourhoods", mock.Anything, "Torino").
		Return([]analysis.Neighbourhood{neighbourhood("a", 45.0), neighbourhood("b", 45.1)}, nil).Once()
	ctx := context.Background()

	snap, err := f.ctrl.Dispatch(ctx, Event{Type: EventLoadCity, City: "torino"})
	require.NoError(t, err)
	assert.Len(t, snap.Areas, 2)

	_, err = f.ctrl.Dispatch(ctx, Event{Type: EventCompare})
	assert.True(t, eris.Is(err, ErrSelectionSize))

	snap, err = f.ctrl.Dispatch(ctx, Event{Type: EventToggleArea, AreaID: "a"})
	require.NoError(t, err)
	assert.True(t, snap.Areas[0].Selected)

	snap, err = f.ctrl.Dispatch(ctx, Event{Type: EventToggleChart})
	require.NoError(t, err)
	assert.Equal(t, chart.Parallel, snap.ActiveChart)

	snap, err = f.ctrl.Dispatch(ctx, Event{Type: EventReset})
	require.NoError(t, err)
	assert.Empty(t, snap.Areas)
	assert.NotEmpty(t, snap.Notifications)

	_, err = f.ctrl.Dispatch(ctx, Event{Type: "explode"})
	assert.True(t, eris.Is(err, ErrUnknownEvent))
}

func TestSnapshot_JSON(t *testing.T) {
	f := newFixture(t, nil)
	data, err := f.ctrl.Snapshot().MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"idle"`)
	assert.Contains(t, string(data), `"active_chart":"radial"`)
	assert.Contains(t, string(data), `"progress_labels":["0/0","0/0"]`)
}
