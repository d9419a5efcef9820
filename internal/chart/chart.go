// Package chart renders area comparison series as radial and parallel-axis
// charts. Both kinds share one data model and rebuild their whole scene on
// every data or hover change.
package chart

import (
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nodescope/area-compare/internal/model"
)

// Kind selects a chart variant.
type Kind int

const (
	// Radial is the spider chart.
	Radial Kind = iota
	// Parallel is the parallel-axis chart.
	Parallel
)

func (k Kind) String() string {
	switch k {
	case Radial:
		return "radial"
	case Parallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Other returns the kind a chart toggle switches to.
func (k Kind) Other() Kind {
	if k == Radial {
		return Parallel
	}
	return Radial
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind parses "radial" or "parallel".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "radial", "radar", "spider":
		return Radial, nil
	case "parallel", "parallel-coordinates":
		return Parallel, nil
	default:
		return Radial, eris.Errorf("chart: unknown chart kind %q", s)
	}
}

// MaxSeries is how many series one chart shows at once.
const MaxSeries = 2

var (
	// ErrAxisMismatch rejects series whose axes differ from the chart's construction axes.
	ErrAxisMismatch = eris.New("chart: series axes do not match chart axes")
	// ErrNoSeries rejects an empty update.
	ErrNoSeries = eris.New("chart: no series to render")
	// ErrTooManySeries rejects more than MaxSeries series.
	ErrTooManySeries = eris.New("chart: at most 2 series are supported")
	// ErrNoSuchSeries rejects hovering a series index that is not rendered.
	ErrNoSuchSeries = eris.New("chart: no such series")
)

// Chart is a renderable comparison chart.
type Chart interface {
	Kind() Kind
	Axes() []string
	Series() []model.ChartSeries
	// UpdateData discards the rendered state and renders series from scratch.
	// On error the previous render stays.
	UpdateData(series []model.ChartSeries) error
	// PointerEnter highlights one series and shows its tooltip near (x, y).
	PointerEnter(series int, x, y float64) error
	// PointerLeave clears any highlight and tooltip.
	PointerLeave()
	Hovered() (Hover, bool)
	Scene() *Node
	EncodeSVG(w io.Writer) error
	EncodePNG(w io.Writer) error
}

// Hover describes the highlighted series.
type Hover struct {
	Series int
	X, Y   float64
}

// New builds a chart of the given kind.
func New(kind Kind, opts Options, initial []model.ChartSeries) (Chart, error) {
	switch kind {
	case Radial:
		return NewRadial(opts, initial)
	case Parallel:
		return NewParallel(opts, initial)
	default:
		return nil, eris.Errorf("chart: unknown chart kind %d", kind)
	}
}

type drawFunc func(o Options, axes []string, series []model.ChartSeries, hv *Hover) *Node

type base struct {
	kind Kind
	opts Options
	axes []string
	draw drawFunc

	mu     sync.RWMutex
	series []model.ChartSeries
	hover  *Hover
	scene  *Node
}

func newBase(kind Kind, opts Options, initial []model.ChartSeries, draw drawFunc) (*base, error) {
	if len(initial) == 0 {
		initial = model.DefaultSeries()
	}
	axes := initial[0].AxisNames()
	if len(axes) == 0 {
		return nil, eris.New("chart: first series has no axes")
	}
	b := &base{kind: kind, opts: opts.withDefaults(), axes: axes, draw: draw}
	if err := b.UpdateData(initial); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) Axes() []string { return slices.Clone(b.axes) }

// Options returns the effective options after defaults.
func (b *base) Options() Options { return b.opts }

func (b *base) Series() []model.ChartSeries {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return model.CloneSeries(b.series)
}

func (b *base) UpdateData(series []model.ChartSeries) error {
	prepared, err := b.prepare(series)
	if err != nil {
		zap.L().Warn("chart update rejected",
			zap.Stringer("kind", b.kind),
			zap.Int("series", len(series)),
			zap.Error(err),
		)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.series = prepared
	b.hover = nil
	b.scene = b.draw(b.opts, b.axes, b.series, nil)
	return nil
}

func (b *base) PointerEnter(series int, x, y float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if series < 0 || series >= len(b.series) {
		return eris.Wrapf(ErrNoSuchSeries, "chart: series %d of %d", series, len(b.series))
	}
	b.hover = &Hover{Series: series, X: x, Y: y}
	b.scene = b.draw(b.opts, b.axes, b.series, b.hover)
	return nil
}

func (b *base) PointerLeave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hover == nil {
		return
	}
	b.hover = nil
	b.scene = b.draw(b.opts, b.axes, b.series, nil)
}

func (b *base) Hovered() (Hover, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.hover == nil {
		return Hover{}, false
	}
	return *b.hover, true
}

// Scene returns a copy of the current scene.
func (b *base) Scene() *Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scene.Clone()
}

func (b *base) EncodeSVG(w io.Writer) error {
	return EncodeSVG(w, b.Scene())
}

func (b *base) EncodePNG(w io.Writer) error {
	return EncodePNG(w, b.Scene())
}

// prepare validates series against the chart axes and clamps values into [0, MaxValue].
func (b *base) prepare(series []model.ChartSeries) ([]model.ChartSeries, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	if len(series) > MaxSeries {
		return nil, eris.Wrapf(ErrTooManySeries, "chart: got %d", len(series))
	}
	out := model.CloneSeries(series)
	for i := range out {
		if !slices.Equal(out[i].AxisNames(), b.axes) {
			return nil, eris.Wrapf(ErrAxisMismatch, "chart: series %q has axes %v, want %v",
				out[i].Label, out[i].AxisNames(), b.axes)
		}
		for j := range out[i].Axes {
			v, clamped := clamp(out[i].Axes[j].Value, b.opts.MaxValue)
			if clamped {
				zap.L().Warn("chart value clamped",
					zap.String("series", out[i].Label),
					zap.String("axis", out[i].Axes[j].Axis),
					zap.Float64("value", out[i].Axes[j].Value),
					zap.Float64("clamped", v),
				)
			}
			out[i].Axes[j].Value = v
		}
	}
	return out, nil
}

func clamp(v, limit float64) (float64, bool) {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0, true
	case v > limit:
		return limit, true
	default:
		return v, false
	}
}

// percent formats a tooltip line, e.g. "Density: 42%".
func percent(axis string, v float64) string {
	return axis + ": " + strconv.Itoa(int(math.Round(v*100))) + "%"
}
