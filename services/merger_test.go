package services

import (
	"strings"
	"testing"

	"property-underwriter/models"
)

func TestMergeTableOverridesManual(t *testing.T) {
	res := normalizeCSV(t, "Income,Expenses,Units,Debt Service\n120000,50000,12,30000\n1,1,1,1\n")
	manual := models.InputRecord{
		OfferPrice:    1000000,
		TotalIncome:   100000,
		TotalExpenses: 40000,
		Equity:        250000,
		NumUnits:      10,
		UnitMix:       "1B1B: 10 units",
	}

	rec := NewMerger(newTestLogger()).Merge(res.Table, manual)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"income from first row", rec.TotalIncome, 120000},
		{"expenses from first row", rec.TotalExpenses, 50000},
		{"units from table", rec.NumUnits, 12},
		{"debt service from table", rec.DebtService, 30000},
		{"equity falls back to manual", rec.Equity, 250000},
		{"offer price is manual only", rec.OfferPrice, 1000000},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if rec.UnitMix != "1B1B: 10 units" {
		t.Errorf("UnitMix: got %q", rec.UnitMix)
	}
}

func TestMergeTextCellReadsAsZero(t *testing.T) {
	table := &models.RawTable{
		Columns: []string{models.ColumnIncome, models.ColumnExpenses},
		Rows: []models.Row{{
			models.ColumnIncome:   models.TextCell("see notes"),
			models.ColumnExpenses: models.NumberValue(40000),
		}},
	}
	rec := NewMerger(newTestLogger()).Merge(table, models.InputRecord{TotalIncome: 99})
	if rec.TotalIncome != 0 {
		t.Errorf("TotalIncome: got %v, want 0", rec.TotalIncome)
	}
}

func TestMergeEmptyTableKeepsManual(t *testing.T) {
	res := normalizeCSV(t, "Income,Expenses\n")
	manual := models.InputRecord{TotalIncome: 100000, TotalExpenses: 40000}
	rec := NewMerger(newTestLogger()).Merge(res.Table, manual)
	if rec != manual {
		t.Errorf("got %+v, want manual record", rec)
	}
}

func TestMergeNilTableUsesManualTable(t *testing.T) {
	manual := models.InputRecord{TotalIncome: 100000, TotalExpenses: 40000, MarketRent: 1500}
	rec := NewMerger(newTestLogger()).Merge(nil, manual)
	if rec != manual {
		t.Errorf("got %+v, want %+v", rec, manual)
	}

	table := ManualTable(manual)
	if table.Len() != 1 || strings.Join(table.Columns, ",") != "Income,Expenses" {
		t.Errorf("ManualTable: got %+v", table)
	}
}
