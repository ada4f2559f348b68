package storage

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"property-underwriter/models"
)

// Workbook sheet names.
const (
	SheetMetrics  = "Metrics"
	SheetInputs   = "Inputs"
	SheetInsights = "Insights"
	SheetChart    = "Chart"
)

// XLSXExporter builds a workbook with metrics, inputs, the insight text and
// the chart image when present.
type XLSXExporter struct{}

func (XLSXExporter) Format() string { return FormatXLSX }
func (XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXExporter) Export(_ context.Context, r *models.Report) ([]byte, error) {
	wb, err := BuildWorkbook(r)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildWorkbook lays the report out over its sheets. The caller closes the file.
func BuildWorkbook(r *models.Report) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), SheetMetrics); err != nil {
		wb.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if err := fillWorkbook(wb, r); err != nil {
		wb.Close()
		return nil, err
	}
	return wb, nil
}

func fillWorkbook(wb *excelize.File, r *models.Report) error {
	a := r.Analysis
	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}

	rows := [][]any{{"Metric", "Value", "Display", "Undefined"}}
	for _, m := range a.Metrics.Entries() {
		rows = append(rows, []any{m.Name, m.Value, m.Display(), m.Undefined})
	}
	if err := writeRows(wb, SheetMetrics, rows, bold); err != nil {
		return err
	}
	if err := wb.SetColWidth(SheetMetrics, "A", "A", 32); err != nil {
		return fmt.Errorf("xlsx: column width: %w", err)
	}

	if _, err := wb.NewSheet(SheetInputs); err != nil {
		return fmt.Errorf("xlsx: new sheet: %w", err)
	}
	rows = [][]any{{"Field", "Label", "Value"}}
	for _, f := range models.Fields {
		var v any = a.Inputs.Number(f.Name)
		if f.Kind == models.Text {
			v = a.Inputs.TextValue(f.Name)
		}
		rows = append(rows, []any{f.Name, f.Label, v})
	}
	rows = append(rows, []any{}, []any{"source", "Source", a.Source})
	if err := writeRows(wb, SheetInputs, rows, bold); err != nil {
		return err
	}
	if err := wb.SetColWidth(SheetInputs, "A", "B", 30); err != nil {
		return fmt.Errorf("xlsx: column width: %w", err)
	}

	if r.Insight != "" {
		if _, err := wb.NewSheet(SheetInsights); err != nil {
			return fmt.Errorf("xlsx: new sheet: %w", err)
		}
		rows = [][]any{{"Kind", "Insight"}, {r.InsightKind, r.Insight}}
		if err := writeRows(wb, SheetInsights, rows, bold); err != nil {
			return err
		}
		if err := wb.SetColWidth(SheetInsights, "B", "B", 100); err != nil {
			return fmt.Errorf("xlsx: column width: %w", err)
		}
	}

	if len(r.Chart) > 0 {
		if _, err := wb.NewSheet(SheetChart); err != nil {
			return fmt.Errorf("xlsx: new sheet: %w", err)
		}
		if err := wb.AddPictureFromBytes(SheetChart, "A1", &excelize.Picture{
			Extension: ".png",
			File:      r.Chart,
			Format:    &excelize.GraphicOptions{AltText: r.ChartKind + " chart", ScaleX: 0.6, ScaleY: 0.6},
		}); err != nil {
			return fmt.Errorf("xlsx: add chart: %w", err)
		}
	}
	return nil
}

func writeRows(wb *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := wb.SetCellStyle(sheet, "A1", end, headerStyle); err != nil {
			return fmt.Errorf("xlsx: header style: %w", err)
		}
	}
	return nil
}
