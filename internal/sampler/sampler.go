// Package sampler estimates an area's metric vector by probing interior points
// against the analysis backend and averaging the answers.
package sampler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nodescope/area-compare/internal/mapview"
	"github.com/nodescope/area-compare/internal/model"
)

var errEmptyAnswer = eris.New("sampler: empty point metrics")

// DefaultMaxPoints caps how many interior points are probed per area.
const DefaultMaxPoints = 25

// PointClient computes metrics for a single point.
type PointClient interface {
	ComputePointMetrics(ctx context.Context, coords model.Coordinates, profile model.Profile) (*model.PointMetrics, error)
}

// Progress is reported after each probed point.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Done reports whether every point has been processed.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Processed == p.Total
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Processed, p.Total)
}

// Outcome classifies a finished sample.
type Outcome int

const (
	// Complete means every probed point answered.
	Complete Outcome = iota
	// Partial means some probed points failed.
	Partial
	// NoData means there was nothing to probe, or every answer was all-null.
	NoData
	// Failed means every probed point failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case NoData:
		return "no_data"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the aggregate for one area.
type Result struct {
	Vector    model.MetricVector `json:"vector"`
	Probed    int                `json:"probed"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Outcome   Outcome            `json:"outcome"`
}

// Options configures a Sampler.
type Options struct {
	MaxPoints   int
	Concurrency int
	Markers     mapview.Layer
}

// Sampler probes areas point by point.
type Sampler struct {
	client PointClient
	opts   Options
}

// New creates a Sampler. Zero options mean 25 points, sequential, no markers.
func New(client PointClient, opts Options) *Sampler {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Markers == nil {
		opts.Markers = mapview.Nop{}
	}
	return &Sampler{client: client, opts: opts}
}

type pointResult struct {
	vector model.MetricVector
	ok     bool
}

// SampleArea probes up to MaxPoints of the area's sample points in order and
// returns the dimension-wise mean of the answers. Failed points are skipped.
// onProgress, when set, is called once per processed point with strictly
// increasing counts. A cancelled ctx yields an error and no result.
func (s *Sampler) SampleArea(ctx context.Context, area model.Area, profile model.Profile, onProgress func(Progress)) (Result, error) {
	log := zap.L().With(zap.String("component", "sampler"), zap.String("area_id", area.ID))

	points := area.SamplePoints
	if len(points) > s.opts.MaxPoints {
		points = points[:s.opts.MaxPoints]
	}
	if len(points) == 0 {
		log.Info("area has no sample points")
		return Result{Outcome: NoData}, nil
	}

	total := len(points)
	results := make([]pointResult, total)

	var mu sync.Mutex
	processed := 0
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		processed++
		if onProgress != nil {
			onProgress(Progress{Processed: processed, Total: total})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, pt := range points {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			popup := fmt.Sprintf("Point %d/%d", i+1, total)
			marker := s.opts.Markers.PlaceMarker(pt, mapview.MarkerPending, popup)

			pm, err := s.client.ComputePointMetrics(gctx, pt, profile)
			if ctxErr := gctx.Err(); ctxErr != nil {
				s.opts.Markers.UpdateMarker(marker, mapview.MarkerFailure, popup+": cancelled")
				return ctxErr
			}
			if err == nil && pm == nil {
				err = errEmptyAnswer
			}
			if err != nil {
				log.Warn("point metrics failed",
					zap.Int("point", i+1),
					zap.Float64("lat", pt.Lat),
					zap.Float64("lon", pt.Lon),
					zap.Error(err),
				)
				s.opts.Markers.UpdateMarker(marker, mapview.MarkerFailure, popup+": "+err.Error())
				report()
				return nil
			}

			results[i] = pointResult{vector: pm.Vector(), ok: true}
			s.opts.Markers.UpdateMarker(marker, mapview.MarkerSuccess, popup)
			report()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, eris.Wrapf(err, "sampler: area %s cancelled", area.ID)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, eris.Wrapf(err, "sampler: area %s cancelled", area.ID)
	}

	var acc model.Accumulator
	res := Result{Probed: total}
	for _, r := range results {
		if !r.ok {
			res.Failed++
			continue
		}
		res.Succeeded++
		acc.Add(r.vector)
	}
	res.Vector = acc.Mean()

	switch {
	case res.Succeeded == 0:
		res.Outcome = Failed
	case res.Vector.Defined() == 0:
		res.Outcome = NoData
	case res.Failed > 0:
		res.Outcome = Partial
	default:
		res.Outcome = Complete
	}

	log.Info("area sampled",
		zap.Int("probed", res.Probed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Stringer("outcome", res.Outcome),
	)
	return res, nil
}
