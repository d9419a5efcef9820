package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names in an exported workbook.
const (
	SheetMetrics = "Metrics"
	SheetAreas   = "Areas"
	SheetRun     = "Run"
)

var areaHeader = []string{"Label", "ID", "Name", "Color", "Probed", "Succeeded", "Failed", "Outcome"}

// WriteXLSX writes r as a workbook with Metrics, Areas and Run sheets.
// Undefined values are left as empty cells.
func WriteXLSX(w io.Writer, r Report) error {
	f := xlsx.NewFile()
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true

	metrics, err := f.AddSheet(SheetMetrics)
	if err != nil {
		return eris.Wrap(err, "xlsx: add metrics sheet")
	}
	addHeader(metrics, bold, "Dimension", r.Areas[0].Label, r.Areas[1].Label)
	for _, row := range r.Rows {
		xr := metrics.AddRow()
		xr.AddCell().SetString(row.Dimension)
		for _, v := range row.Values {
			c := xr.AddCell()
			if v != nil {
				c.SetFloat(*v)
			}
		}
	}

	areas, err := f.AddSheet(SheetAreas)
	if err != nil {
		return eris.Wrap(err, "xlsx: add areas sheet")
	}
	addHeader(areas, bold, areaHeader...)
	for _, a := range r.Areas {
		xr := areas.AddRow()
		xr.AddCell().SetString(a.Label)
		xr.AddCell().SetString(a.ID)
		xr.AddCell().SetString(a.Name)
		xr.AddCell().SetString(a.Color)
		xr.AddCell().SetInt(a.Probed)
		xr.AddCell().SetInt(a.Succeeded)
		xr.AddCell().SetInt(a.Failed)
		xr.AddCell().SetString(a.Outcome)
	}

	run, err := f.AddSheet(SheetRun)
	if err != nil {
		return eris.Wrap(err, "xlsx: add run sheet")
	}
	for _, kv := range [][2]string{
		{"run_id", r.RunID},
		{"city", r.City},
		{"minutes", strconv.Itoa(r.Profile.Minutes)},
		{"velocity", strconv.Itoa(r.Profile.Velocity)},
		{"categories", strings.Join(r.Profile.Categories, ",")},
		{"generated_at", r.GeneratedAt.UTC().Format(time.RFC3339)},
	} {
		xr := run.AddRow()
		xr.AddCell().SetString(kv[0])
		xr.AddCell().SetString(kv[1])
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

func addHeader(sheet *xlsx.Sheet, style *xlsx.Style, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		c := row.AddCell()
		c.SetString(n)
		c.SetStyle(style)
	}
}

// ReadXLSX loads a workbook written by WriteXLSX.
func ReadXLSX(path string) (Report, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Report{}, eris.Wrap(err, "xlsx: open file")
	}

	var r Report
	metrics, err := sheetRows(f, SheetMetrics)
	if err != nil {
		return Report{}, err
	}
	if len(metrics) == 0 {
		return Report{}, eris.New("xlsx: metrics sheet is empty")
	}
	for slot := range r.Areas {
		r.Areas[slot].Label = cellAt(metrics[0], slot+1)
	}
	for i, cells := range metrics[1:] {
		row := Row{Dimension: cellAt(cells, 0)}
		for slot := range row.Values {
			s := strings.TrimSpace(cellAt(cells, slot+1))
			if s == "" {
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Report{}, eris.Wrapf(err, "xlsx: metrics row %d", i+2)
			}
			row.Values[slot] = &v
		}
		r.Rows = append(r.Rows, row)
	}

	if areas, err := sheetRows(f, SheetAreas); err == nil {
		for slot, cells := range areas[min(1, len(areas)):] {
			if slot >= len(r.Areas) {
				break
			}
			a := &r.Areas[slot]
			a.Label = cellAt(cells, 0)
			a.ID = cellAt(cells, 1)
			a.Name = cellAt(cells, 2)
			a.Color = cellAt(cells, 3)
			a.Probed, _ = strconv.Atoi(cellAt(cells, 4))
			a.Succeeded, _ = strconv.Atoi(cellAt(cells, 5))
			a.Failed, _ = strconv.Atoi(cellAt(cells, 6))
			a.Outcome = cellAt(cells, 7)
		}
	}

	if run, err := sheetRows(f, SheetRun); err == nil {
		for _, cells := range run {
			applyRunField(&r, cellAt(cells, 0), cellAt(cells, 1))
		}
	}
	return r, nil
}

func applyRunField(r *Report, key, value string) {
	switch key {
	case "run_id":
		r.RunID = value
	case "city":
		r.City = value
	case "minutes":
		r.Profile.Minutes, _ = strconv.Atoi(value)
	case "velocity":
		r.Profile.Velocity, _ = strconv.Atoi(value)
	case "categories":
		if value != "" {
			r.Profile.Categories = strings.Split(value, ",")
		}
	case "generated_at":
		r.GeneratedAt, _ = time.Parse(time.RFC3339, value)
	}
}

func sheetRows(f *xlsx.File, name string) ([][]string, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("xlsx: sheet %q not found", name)
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}
