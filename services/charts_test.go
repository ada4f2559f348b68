package services

import (
	"bytes"
	"errors"
	"testing"

	"property-underwriter/models"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleMetrics() []models.Metric {
	return []models.Metric{
		{Name: models.MetricNOI, Value: 60000, Unit: models.UnitMoney},
		{Name: models.MetricAnnualCashFlow, Value: 30000, Unit: models.UnitMoney},
		{Name: models.MetricAncillaryIncome, Value: 2000, Unit: models.UnitMoney},
	}
}

func TestParseChartKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ChartKind
		wantErr bool
	}{
		{"bar", ChartBar, false},
		{" Pie ", ChartPie, false},
		{"LINE", ChartLine, false},
		{"scatter", "", true},
	}
	for _, tt := range tests {
		got, err := ParseChartKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChartKind(%q): err %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseChartKind(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderKinds(t *testing.T) {
	r := NewChartRenderer(newTestLogger(), 600, 400, 10)
	for _, kind := range ChartKinds {
		img, err := r.Render(sampleMetrics(), kind)
		if err != nil {
			t.Errorf("%s: %v", kind, err)
			continue
		}
		if !bytes.HasPrefix(img, pngMagic) {
			t.Errorf("%s: output is not a PNG", kind)
		}
	}
}

func TestRenderBarWithNegativeValue(t *testing.T) {
	metrics := append(sampleMetrics(), models.Metric{Name: models.MetricAnnualCashFlow, Value: -12000})
	if _, err := NewChartRenderer(newTestLogger(), 600, 400, 10).Render(metrics, ChartBar); err != nil {
		t.Errorf("bar with negative value: %v", err)
	}
}

func TestRenderWarnings(t *testing.T) {
	many := make([]models.Metric, 11)
	for i := range many {
		many[i] = models.Metric{Name: string(rune('A' + i)), Value: float64(i + 1)}
	}
	tests := []struct {
		name    string
		metrics []models.Metric
		kind    ChartKind
		want    error
	}{
		{"all zero", []models.Metric{{Name: "NOI"}, {Name: "DSCR"}}, ChartBar, models.ErrNothingToPlot},
		{"empty", nil, ChartLine, models.ErrNothingToPlot},
		{"too many slices", many, ChartPie, models.ErrTooManySlices},
		{"negative slice", []models.Metric{{Name: "NOI", Value: -1}, {Name: "DSCR", Value: 2}}, ChartPie, models.ErrNegativeSlice},
	}
	r := NewChartRenderer(newTestLogger(), 600, 400, 10)
	for _, tt := range tests {
		img, err := r.Render(tt.metrics, tt.kind)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
		if !IsChartWarning(err) {
			t.Errorf("%s: expected a chart warning", tt.name)
		}
		if img != nil {
			t.Errorf("%s: no image expected", tt.name)
		}
	}
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := NewChartRenderer(newTestLogger(), 0, 0, 0).Render(sampleMetrics(), ChartKind("radar"))
	var invalid *models.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if IsChartWarning(err) {
		t.Error("unknown kind is an error, not a warning")
	}
}

func TestChartMetrics(t *testing.T) {
	res := sampleResult(t)
	core, err := ChartMetrics(res, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(core) != len(models.CoreMetricNames) || core[0].Name != models.MetricNOI {
		t.Errorf("core: got %+v", core)
	}
	all, _ := ChartMetrics(res, "ALL")
	if len(all) != len(res.Entries()) {
		t.Errorf("all: got %d entries, want %d", len(all), len(res.Entries()))
	}
	if _, err := ChartMetrics(res, "some"); err == nil {
		t.Error("expected error for unknown set")
	}
}
