// Package report exports a finished comparison as YAML or as an XLSX
// workbook, and reads either back so a chart can be re-rendered offline.
package report

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/nodescope/area-compare/internal/compare"
	"github.com/nodescope/area-compare/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("report: unsupported file type %q", filepath.Ext(path))
	}
}

// AreaSummary describes one compared area.
type AreaSummary struct {
	Label     string `yaml:"label"`
	ID        string `yaml:"id"`
	Name      string `yaml:"name,omitempty"`
	Color     string `yaml:"color,omitempty"`
	Probed    int    `yaml:"probed"`
	Succeeded int    `yaml:"succeeded"`
	Failed    int    `yaml:"failed"`
	Outcome   string `yaml:"outcome"`
}

// Row holds one dimension's value per area. Nil means no data.
type Row struct {
	Dimension string      `yaml:"dimension"`
	Values    [2]*float64 `yaml:"values,flow"`
}

// Report is the exported form of a comparison.
type Report struct {
	RunID       string         `yaml:"run_id"`
	City        string         `yaml:"city,omitempty"`
	Profile     model.Profile  `yaml:"profile"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Areas       [2]AreaSummary `yaml:"areas"`
	Rows        []Row          `yaml:"metrics"`
}

// New builds a report from a comparison.
func New(cmp *compare.Comparison) Report {
	r := Report{
		RunID:       cmp.RunID,
		City:        cmp.City,
		Profile:     cmp.Profile,
		GeneratedAt: cmp.FinishedAt,
	}
	for slot, res := range cmp.Results {
		a := cmp.Areas[slot]
		r.Areas[slot] = AreaSummary{
			Label:     model.SlotLabel(slot),
			ID:        a.ID,
			Name:      a.Name,
			Color:     a.Color,
			Probed:    res.Probed,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
			Outcome:   res.Outcome.String(),
		}
	}
	for _, d := range model.Dimensions() {
		row := Row{Dimension: d.String()}
		for slot, res := range cmp.Results {
			if v, ok := res.Vector.Get(d); ok {
				row.Values[slot] = &v
			}
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

// Vectors rebuilds the per-area metric vectors. Unknown dimensions are ignored.
func (r Report) Vectors() [2]model.MetricVector {
	var out [2]model.MetricVector
	for _, row := range r.Rows {
		d, ok := model.ParseDimension(row.Dimension)
		if !ok {
			continue
		}
		for slot, v := range row.Values {
			if v != nil {
				out[slot].Set(d, *v)
			}
		}
	}
	return out
}

// Series returns the chart series for the report, labeled by slot.
func (r Report) Series() []model.ChartSeries {
	vs := r.Vectors()
	out := make([]model.ChartSeries, len(vs))
	for slot, v := range vs {
		label := r.Areas[slot].Label
		if label == "" {
			label = model.SlotLabel(slot)
		}
		out[slot] = model.NewSeries(label, v)
	}
	return out
}

// Write encodes r in the given format.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// Read loads a report from path, choosing the decoder by extension.
func Read(path string) (Report, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Report{}, err
	}
	if format == FormatXLSX {
		return ReadXLSX(path)
	}
	return ReadYAMLFile(path)
}

// WriteYAML encodes r as a YAML document.
func WriteYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

// ReadYAML decodes a report written by WriteYAML.
func ReadYAML(rd io.Reader) (Report, error) {
	var r Report
	if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
		return Report{}, eris.Wrap(err, "report: decode yaml")
	}
	return r, nil
}
