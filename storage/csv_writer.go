package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"property-underwriter/models"
)

// CSVExporter writes the metrics of a report as metric,value,undefined rows.
type CSVExporter struct{}

func (CSVExporter) Format() string      { return FormatCSV }
func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVExporter) Export(_ context.Context, r *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteMetricsCSV(&buf, r.Analysis.Metrics); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteMetricsCSV writes the header row followed by one row per metric in
// stable order.
func WriteMetricsCSV(buf *bytes.Buffer, m models.MetricsResult) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"metric", "value", "undefined"}); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, e := range m.Entries() {
		row := []string{
			e.Name,
			strconv.FormatFloat(e.Value, 'f', -1, 64),
			strconv.FormatBool(e.Undefined),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
