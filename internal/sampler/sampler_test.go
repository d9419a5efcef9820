package sampler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
	"github.com/nodescope/area-compare/pkg/analysis/mocks"
)

type clientFunc func(ctx context.Context, c model.Coordinates, p model.Profile) (*model.PointMetrics, error)

func (f clientFunc) ComputePointMetrics(ctx context.Context, c model.Coordinates, p model.Profile) (*model.PointMetrics, error) {
	return f(ctx, c, p)
}

func ptr(v float64) *float64 { return &v }

func full(p, d, e, a, c float64) *model.PointMetrics {
	return &model.PointMetrics{ProximityScore: ptr(p), DensityScore: ptr(d), EntropyScore: ptr(e), PoiAccessibility: ptr(a), Closeness: ptr(c)}
}

func pointsN(n int) []model.Coordinates {
	out := make([]model.Coordinates, n)
	for i := range out {
		out[i] = model.Coordinates{Lat: 45 + float64(i)*0.001, Lon: 7}
	}
	return out
}

var profile = model.Profile{Minutes: 15, Velocity: 5}

type progressLog struct {
	mu   sync.Mutex
	seen []Progress
}

func (l *progressLog) record(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, p)
}

func TestSampleArea_ExactMean(t *testing.T) {
	pts := pointsN(3)
	client := mocks.NewMockClient(t)
	client.On("ComputePointMetrics", mock.Anything, pts[0], profile).Return(full(0.1, 0.2, 0.3, 0.4, 0.5), nil).Once()
	client.On("ComputePointMetrics", mock.Anything, pts[1], profile).Return(full(0.3, 0.4, 0.5, 0.6, 0.7), nil).Once()
	client.On("ComputePointMetrics", mock.Anything, pts[2], profile).Return(full(0.8, 0.9, 0.1, 0.2, 0.3), nil).Once()

	var log progressLog
	res, err := New(client, Options{}).SampleArea(context.Background(), model.Area{ID: "a", SamplePoints: pts}, profile, log.record)
	require.NoError(t, err)

	want := [model.NumDimensions]float64{
		(0.1 + 0.3 + 0.8) / 3,
		(0.2 + 0.4 + 0.9) / 3,
		(0.3 + 0.5 + 0.1) / 3,
		(0.4 + 0.6 + 0.2) / 3,
		(0.5 + 0.7 + 0.3) / 3,
	}
	for _, d := range model.Dimensions() {
		got, ok := res.Vector.Get(d)
		require.True(t, ok, d.String())
		assert.InDelta(t, want[d], got, 1e-9, d.String())
	}
	assert.Equal(t, Complete, res.Outcome)
	assert.Equal(t, 3, res.Probed)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, []Progress{{1, 3}, {2, 3}, {3, 3}}, log.seen)
}

func TestSampleArea_AllFail(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("ComputePointMetrics", mock.Anything, mock.Anything, profile).Return(nil, errors.New("502 bad gateway")).Times(4)

	var log progressLog
	res, err := New(client, Options{}).SampleArea(context.Background(), model.Area{ID: "a", SamplePoints: pointsN(4)}, profile, log.record)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Vector.Defined())
	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, 4, res.Failed)

	done := 0
	for _, p := range log.seen {
		if p.Done() {
			done++
			assert.Equal(t, "4/4", p.String())
		}
	}
	assert.Equal(t, 1, done)
	assert.Len(t, log.seen, 4)
}

func TestSampleArea_NoPoints(t *testing.T) {
	called := false
	res, err := New(clientFunc(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
		t.Fatal("no network call expected")
		return nil, nil
	}), Options{}).SampleArea(context.Background(), model.Area{ID: "empty"}, profile, func(Progress) { called = true })

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, NoData, res.Outcome)
	assert.Equal(t, 0, res.Vector.Defined())
}

func TestSampleArea_MissingDimensionStaysUndefined(t *testing.T) {
	pts := pointsN(2)
	res, err := New(clientFunc(func(_ context.Context, c model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		if c == pts[0] {
			return &model.PointMetrics{ProximityScore: ptr(0.4), DensityScore: ptr(0.6)}, nil
		}
		return &model.PointMetrics{ProximityScore: ptr(0.8)}, nil
	}), Options{}).SampleArea(context.Background(), model.Area{SamplePoints: pts}, profile, nil)
	require.NoError(t, err)

	p, _ := res.Vector.Get(model.Proximity)
	assert.InDelta(t, 0.6, p, 1e-9)
	d, _ := res.Vector.Get(model.Density)
	assert.InDelta(t, 0.6, d, 1e-9, "mean over points that supplied the dimension")
	_, ok := res.Vector.Get(model.Closeness)
	assert.False(t, ok)
	assert.Equal(t, Complete, res.Outcome)
}

func TestSampleArea_AllNullIsNoData(t *testing.T) {
	res, err := New(clientFunc(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
		return &model.PointMetrics{}, nil
	}), Options{}).SampleArea(context.Background(), model.Area{SamplePoints: pointsN(2)}, profile, nil)
	require.NoError(t, err)
	assert.Equal(t, NoData, res.Outcome)
}

func TestSampleArea_PartialFailure(t *testing.T) {
	pts := pointsN(3)
	res, err := New(clientFunc(func(_ context.Context, c model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		if c == pts[1] {
			return nil, errors.New("timeout")
		}
		return full(1, 1, 1, 1, 1), nil
	}), Options{}).SampleArea(context.Background(), model.Area{SamplePoints: pts}, profile, nil)
	require.NoError(t, err)
	assert.Equal(t, Partial, res.Outcome)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	v, _ := res.Vector.Get(model.Entropy)
	assert.InDelta(t, 1.0, v, 1e-12)
}

func TestSampleArea_CapsAtMaxPoints(t *testing.T) {
	var calls atomic.Int32
	res, err := New(clientFunc(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
		calls.Add(1)
		return full(0.5, 0.5, 0.5, 0.5, 0.5), nil
	}), Options{}).SampleArea(context.Background(), model.Area{SamplePoints: pointsN(30)}, profile, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(DefaultMaxPoints), calls.Load())
	assert.Equal(t, DefaultMaxPoints, res.Probed)
}

func TestSampleArea_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	client := clientFunc(func(ctx context.Context, _ model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		if calls.Add(1) == 2 {
			cancel()
			return nil, ctx.Err()
		}
		return full(1, 1, 1, 1, 1), nil
	})

	var log progressLog
	res, err := New(client, Options{}).SampleArea(ctx, model.Area{ID: "a", SamplePoints: pointsN(5)}, profile, log.record)
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
	assert.Equal(t, Result{}, res)
	assert.Equal(t, int32(2), calls.Load(), "no calls after cancellation")
	assert.Len(t, log.seen, 1)
}

func TestSampleArea_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(clientFunc(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
		t.Fatal("no network call expected")
		return nil, nil
	}), Options{}).SampleArea(ctx, model.Area{SamplePoints: pointsN(3)}, profile, nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, context.Canceled))
}

func TestSampleArea_Markers(t *testing.T) {
	pts := pointsN(2)
	rec := mapview.NewRecorder()
	_, err := New(clientFunc(func(_ context.Context, c model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		if c == pts[1] {
			return nil, errors.New("boom")
		}
		return full(1, 1, 1, 1, 1), nil
	}), Options{Markers: rec}).SampleArea(context.Background(), model.Area{SamplePoints: pts}, profile, nil)
	require.NoError(t, err)

	markers := rec.Snapshot().Markers
	require.Len(t, markers, 2)
	assert.Equal(t, mapview.MarkerSuccess, markers[0].Color)
	assert.Equal(t, pts[0], markers[0].Position)
	assert.Equal(t, mapview.MarkerFailure, markers[1].Color)
	assert.Contains(t, markers[1].Popup, "boom")
}

func TestSampleArea_CancelledPointMarkedFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := mapview.NewRecorder()
	client := clientFunc(func(ctx context.Context, _ model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := New(client, Options{Markers: rec}).SampleArea(ctx, model.Area{ID: "a", SamplePoints: pointsN(1)}, profile, nil)
	require.Error(t, err)

	markers := rec.Snapshot().Markers
	require.Len(t, markers, 1)
	assert.Equal(t, mapview.MarkerFailure, markers[0].Color)
	assert.Contains(t, markers[0].Popup, "cancelled")
}

func TestSampleArea_NilAnswerCountsAsFailure(t *testing.T) {
	pts := pointsN(2)
	rec := mapview.NewRecorder()
	res, err := New(clientFunc(func(_ context.Context, c model.Coordinates, _ model.Profile) (*model.PointMetrics, error) {
		if c == pts[0] {
			return nil, nil
		}
		return full(0.4, 0.4, 0.4, 0.4, 0.4), nil
	}), Options{Markers: rec}).SampleArea(context.Background(), model.Area{ID: "a", SamplePoints: pts}, profile, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, Partial, res.Outcome)
	markers := rec.Snapshot().Markers
	require.Len(t, markers, 2)
	assert.Equal(t, mapview.MarkerFailure, markers[0].Color)
}

func TestSampleArea_ConcurrentProgressMonotonic(t *testing.T) {
	var log progressLog
	res, err := New(clientFunc(func(context.Context, model.Coordinates, model.Profile) (*model.PointMetrics, error) {
		return full(0.25, 0.5, 0.75, 1, 0), nil
	}), Options{Concurrency: 4}).SampleArea(context.Background(), model.Area{SamplePoints: pointsN(12)}, profile, log.record)
	require.NoError(t, err)

	require.Len(t, log.seen, 12)
	for i, p := range log.seen {
		assert.Equal(t, i+1, p.Processed)
		assert.Equal(t, 12, p.Total)
	}
	v, _ := res.Vector.Get(model.Entropy)
	assert.InDelta(t, 0.75, v, 1e-12)
}
