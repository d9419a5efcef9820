package chart

// DefaultColors is the two-series palette shared by both chart kinds.
var DefaultColors = ColorScale{"#483d8b", "#ff6b6b"}

// ColorScale maps a series index to a color, cycling when it runs out.
type ColorScale []string

// Color returns the color for series i.
func (c ColorScale) Color(i int) string {
	if len(c) == 0 {
		return DefaultColors.Color(i)
	}
	if i < 0 {
		i = -i
	}
	return c[i%len(c)]
}

// Options sizes and styles a chart. Zero fields take DefaultOptions values.
type Options struct {
	Width       float64
	Height      float64
	Margin      float64
	Levels      int
	MaxValue    float64
	LabelFactor float64
	DotRadius   float64

	// OpacityArea is the fill opacity of a radial series polygon.
	OpacityArea float64
	// OpacityCircles is the fill opacity of the radial grid rings.
	OpacityCircles float64
	StrokeWidth    float64

	Colors ColorScale
}

// DefaultOptions returns the stock chart geometry.
func DefaultOptions() Options {
	return Options{
		Width:          250,
		Height:         250,
		Margin:         50,
		Levels:         5,
		MaxValue:       1,
		LabelFactor:    1.2,
		DotRadius:      4,
		OpacityArea:    0.35,
		OpacityCircles: 0.1,
		StrokeWidth:    2,
		Colors:         DefaultColors,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Margin <= 0 {
		o.Margin = d.Margin
	}
	if o.Levels <= 0 {
		o.Levels = d.Levels
	}
	if o.MaxValue <= 0 {
		o.MaxValue = d.MaxValue
	}
	if o.LabelFactor <= 0 {
		o.LabelFactor = d.LabelFactor
	}
	if o.DotRadius <= 0 {
		o.DotRadius = d.DotRadius
	}
	if o.OpacityArea <= 0 {
		o.OpacityArea = d.OpacityArea
	}
	if o.OpacityCircles <= 0 {
		o.OpacityCircles = d.OpacityCircles
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = d.StrokeWidth
	}
	if len(o.Colors) == 0 {
		o.Colors = d.Colors
	}
	return o
}
