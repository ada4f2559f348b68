package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"property-underwriter/models"
	"property-underwriter/utils"
)

func sampleReport() *models.Report {
	rec := models.InputRecord{
		OfferPrice:    1000000,
		TotalIncome:   100000,
		TotalExpenses: 40000,
		DebtService:   30000,
		UnitMix:       "1B1B | 10 units",
	}
	return &models.Report{
		Analysis: &models.Analysis{
			ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Source:    "maple-court.xlsx",
			Inputs:    rec,
			Metrics: models.MetricsResult{
				NOI:       60000,
				CapRate:   0.06,
				DSCR:      2,
				Inputs:    rec,
				Undefined: []string{models.MetricCashOnCash},
			},
			Undefined:      []string{models.MetricCashOnCash},
			MissingColumns: []string{},
		},
		InsightKind: "risk",
		Insight:     "Coverage is **comfortable**.",
	}
}

func TestCSVExport(t *testing.T) {
	data, err := CSVExporter{}.Export(context.Background(), sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(records[0], ",") != "metric,value,undefined" {
		t.Errorf("header: got %v", records[0])
	}
	tests := []struct {
		row  int
		want string
	}{
		{1, "NOI,60000,false"},
		{2, "Cap Rate,0.06,false"},
		{3, "Cash-on-Cash Return,0,true"},
	}
	for _, tt := range tests {
		if got := strings.Join(records[tt.row], ","); got != tt.want {
			t.Errorf("row %d: got %q, want %q", tt.row, got, tt.want)
		}
	}
	if want := 1 + len(sampleReport().Analysis.Metrics.Entries()); len(records) != want {
		t.Errorf("rows: got %d, want %d", len(records), want)
	}
}

func TestXLSXExport(t *testing.T) {
	rep := sampleReport()
	rep.Chart = tinyPNG(t)
	rep.ChartKind = "bar"

	data, err := XLSXExporter{}.Export(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	want := []string{SheetMetrics, SheetInputs, SheetInsights, SheetChart}
	if strings.Join(sheets, ",") != strings.Join(want, ",") {
		t.Errorf("sheets: got %v, want %v", sheets, want)
	}
	if v, _ := wb.GetCellValue(SheetMetrics, "A2"); v != models.MetricNOI {
		t.Errorf("Metrics!A2: got %q", v)
	}
	if v, _ := wb.GetCellValue(SheetMetrics, "B2"); v != "60000" {
		t.Errorf("Metrics!B2: got %q", v)
	}
	if v, _ := wb.GetCellValue(SheetInsights, "B2"); v != rep.Insight {
		t.Errorf("Insights!B2: got %q", v)
	}
	pics, err := wb.GetPictures(SheetChart, "A1")
	if err != nil || len(pics) != 1 {
		t.Errorf("chart picture: got %d, %v", len(pics), err)
	}
}

func TestXLSXWithoutInsightOrChart(t *testing.T) {
	rep := sampleReport()
	rep.Insight = ""
	wb, err := BuildWorkbook(rep)
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()
	if got := wb.GetSheetList(); len(got) != 2 {
		t.Errorf("sheets: got %v, want Metrics and Inputs", got)
	}
}

func TestReportMarkdownAndHTML(t *testing.T) {
	rep := sampleReport()
	md := ReportMarkdown(rep)
	for _, want := range []string{
		"# Underwriting Report",
		"| NOI | $60,000.00 |",
		"| Cap Rate | 6.00% |",
		"| Cash-on-Cash Return | n/a |",
		`1B1B \| 10 units`,
		"## Insights (risk)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "| Equity |") {
		t.Error("unset inputs should be left out")
	}

	rep.Chart = tinyPNG(t)
	doc, err := buildHTML(rep)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<table>", "<strong>comfortable</strong>", "data:image/png;base64,"} {
		if !strings.Contains(doc, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestPDFExport(t *testing.T) {
	r := LookupPDFRenderer(os.Getenv("CHROME_BIN"))
	if r == nil {
		t.Skip("no Chromium available")
	}
	pdf, err := r.Export(context.Background(), sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}

func TestLookupPDFRenderer(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "chromium")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		wantNil bool
	}{
		{filepath.Join(dir, "absent"), true},
		{dir, true},
		{plain, true},
		{exe, false},
	}
	for _, tt := range tests {
		if got := LookupPDFRenderer(tt.path); (got == nil) != tt.wantNil {
			t.Errorf("%s: got %v, want nil=%v", tt.path, got, tt.wantNil)
		}
	}

	var missing *PDFRenderer
	if _, err := NewExporter(FormatPDF, missing); err == nil {
		t.Error("pdf export without a browser should fail up front")
	}
}

func TestFooterTemplateEscapesID(t *testing.T) {
	got := footerTemplate("<id>")
	if !strings.Contains(got, "Analysis &lt;id&gt;") || !strings.Contains(got, `class="pageNumber"`) {
		t.Errorf("footer: got %s", got)
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"csv", FormatCSV},
		{"XLSX", FormatXLSX},
		{"pdf", FormatPDF},
	}
	for _, tt := range tests {
		e, err := NewExporter(tt.format, NewPDFRenderer("/usr/bin/true"))
		if err != nil {
			t.Errorf("%s: %v", tt.format, err)
			continue
		}
		if e.Format() != tt.want {
			t.Errorf("%s: got %q, want %q", tt.format, e.Format(), tt.want)
		}
	}
	var invalid *models.InvalidInputError
	if _, err := NewExporter("docx", nil); !errors.As(err, &invalid) {
		t.Errorf("docx: got %v, want InvalidInputError", err)
	}
	if _, err := NewExporter("pdf", nil); err == nil {
		t.Error("pdf without renderer should fail")
	}
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewFileWriter(dir, CSVExporter{}, utils.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	rep := sampleReport()
	if err := w.Write(context.Background(), rep); err != nil {
		t.Fatal(err)
	}
	path := w.Path(rep)
	if filepath.Base(path) != "maple-court-0f8fad5b.csv" {
		t.Errorf("path: got %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
}

func TestArchiveSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := OpenArchive(ctx, "sqlite", filepath.Join(t.TempDir(), "archive.db"), utils.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	rep := sampleReport()
	rep.Insight = ""
	if err := a.Write(ctx, rep); err != nil {
		t.Fatal(err)
	}
	rep.Insight = "Updated view."
	if err := a.Write(ctx, rep); err != nil {
		t.Fatal(err)
	}

	var rows []archiveRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM analyses`); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	got := rows[0]
	if got.Insight != "Updated view." || got.InsightKind != "risk" {
		t.Errorf("insight: got %q (%q)", got.Insight, got.InsightKind)
	}
	if !strings.HasPrefix(got.Metrics, `{"NOI":60000,"Cap Rate":0.06`) {
		t.Errorf("metrics: got %s", got.Metrics)
	}
	if got.Undefined != `["Cash-on-Cash Return"]` {
		t.Errorf("undefined: got %s", got.Undefined)
	}
}

func TestOpenArchiveUnknownDriver(t *testing.T) {
	if _, err := OpenArchive(context.Background(), "mysql", "x", utils.Discard()); err == nil {
		t.Error("expected error for unregistered driver")
	}
}
