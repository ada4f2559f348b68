package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEntriesOrderAndUndefined(t *testing.T) {
	m := MetricsResult{
		NOI:       60000,
		CapRate:   0.06,
		Inputs:    InputRecord{TotalIncome: 100000, YearBuilt: 1985},
		Undefined: []string{MetricCashOnCash},
	}
	entries := m.Entries()

	numeric := 0
	for _, f := range Fields {
		if f.Kind == Numeric {
			numeric++
		}
	}
	if want := 13 + numeric; len(entries) != want {
		t.Fatalf("entries: got %d, want %d", len(entries), want)
	}
	if entries[0].Name != MetricNOI || entries[12].Name != MetricProjectedSalePrice {
		t.Errorf("derived order: got %q ... %q", entries[0].Name, entries[12].Name)
	}
	if entries[13].Name != "Offer Price" {
		t.Errorf("first input entry: got %q", entries[13].Name)
	}
	if !entries[2].Undefined || entries[1].Undefined {
		t.Errorf("undefined flags: CoC=%v Cap=%v", entries[2].Undefined, entries[1].Undefined)
	}
	if v, ok := m.Value("Total Income"); !ok || v != 100000 {
		t.Errorf("Value(Total Income): got %v, %v", v, ok)
	}
	if !m.IsUndefined(MetricCashOnCash) || m.IsUndefined(MetricNOI) {
		t.Error("IsUndefined mismatch")
	}
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	data, err := json.Marshal(MetricsResult{NOI: 60000, CapRate: 0.06})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"NOI":60000,"Cap Rate":0.06,"Cash-on-Cash Return":0,`) {
		t.Errorf("unexpected JSON prefix: %s", data)
	}
	var decoded map[string]float64
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not a JSON object: %v", err)
	}
	if decoded["Offer Price"] != 0 {
		t.Errorf("Offer Price: got %v", decoded["Offer Price"])
	}
}

func TestSelect(t *testing.T) {
	m := MetricsResult{NOI: 1, DSCR: 2}
	got := m.Select(MetricDSCR, "Unknown", MetricNOI)
	if len(got) != 2 || got[0].Name != MetricDSCR || got[1].Value != 1 {
		t.Errorf("Select: got %+v", got)
	}
}

func TestMetricDisplay(t *testing.T) {
	tests := []struct {
		m    Metric
		want string
	}{
		{Metric{Value: 60000, Unit: UnitMoney}, "$60,000.00"},
		{Metric{Value: 0.06, Unit: UnitRatio}, "6.00%"},
		{Metric{Value: 2, Unit: UnitMultiple}, "2.00x"},
		{Metric{Value: 1985, Unit: UnitYear}, "1985"},
		{Metric{Value: 7.456}, "7.46"},
		{Metric{Value: 0, Unit: UnitRatio, Undefined: true}, "n/a"},
	}
	for _, tt := range tests {
		if got := tt.m.Display(); got != tt.want {
			t.Errorf("Display(%+v) = %q; want %q", tt.m, got, tt.want)
		}
	}
}

func TestIsDerivedMetric(t *testing.T) {
	if !IsDerivedMetric(MetricProjectedSalePrice) {
		t.Error("Projected Sale Price should be derived")
	}
	if IsDerivedMetric("Total Income") {
		t.Error("Total Income is an input")
	}
}
