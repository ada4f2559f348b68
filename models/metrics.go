package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	"property-underwriter/utils"
)

// Derived metric names. These keys are stable across runs.
const (
	MetricNOI                   = "NOI"
	MetricCapRate               = "Cap Rate"
	MetricCashOnCash            = "Cash-on-Cash Return"
	MetricDSCR                  = "DSCR"
	MetricBreakevenOccupancy    = "Breakeven Occupancy"
	MetricPricePerUnit          = "Price per Unit"
	MetricRentSensitivityNOI    = "Rent-Sensitivity NOI"
	MetricExpenseSensitivityNOI = "Expense-Sensitivity NOI"
	MetricGrossPotentialIncome  = "Gross Potential Income"
	MetricAnnualCashFlow        = "Annual Cash Flow"
	MetricExpenseRatio          = "Expense Ratio"
	MetricAncillaryIncome       = "Ancillary Income"
	MetricProjectedSalePrice    = "Projected Sale Price"
)

// Metric is one named value of a MetricsResult.
type Metric struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Unit      Unit    `json:"-"`
	Undefined bool    `json:"undefined,omitempty"`
}

// Display formats the value for reports according to its unit.
func (m Metric) Display() string {
	if m.Undefined {
		return "n/a"
	}
	switch m.Unit {
	case UnitMoney:
		return utils.FormatMoney(m.Value)
	case UnitRatio:
		return utils.FormatPercent(m.Value)
	case UnitPercent:
		return utils.FormatPoints(m.Value)
	case UnitMultiple:
		return utils.FormatMultiple(m.Value)
	case UnitYear, UnitCount:
		return strconv.FormatFloat(m.Value, 'f', -1, 64)
	default:
		return strconv.FormatFloat(utils.Round2(m.Value), 'f', -1, 64)
	}
}

// MetricsResult holds the derived metrics of one analysis run. Values are always
// finite; a metric whose divisor was not positive is 0 and listed in Undefined.
type MetricsResult struct {
	NOI                   float64
	CapRate               float64
	CashOnCash            float64
	DSCR                  float64
	BreakevenOccupancy    float64
	PricePerUnit          float64
	RentSensitivityNOI    float64
	ExpenseSensitivityNOI float64
	GrossPotentialIncome  float64
	AnnualCashFlow        float64
	ExpenseRatio          float64
	AncillaryIncome       float64
	ProjectedSalePrice    float64

	// Inputs is the record the metrics were computed from; its numeric fields
	// are reported as pass-through metrics.
	Inputs InputRecord

	// Undefined names metrics that hit the zero-guard, in Entries order.
	Undefined []string
}

// Entries returns every metric in stable order: derived metrics first, then the
// numeric inputs under their labels.
func (m MetricsResult) Entries() []Metric {
	undefined := make(map[string]bool, len(m.Undefined))
	for _, name := range m.Undefined {
		undefined[name] = true
	}
	out := []Metric{
		{Name: MetricNOI, Value: m.NOI, Unit: UnitMoney},
		{Name: MetricCapRate, Value: m.CapRate, Unit: UnitRatio},
		{Name: MetricCashOnCash, Value: m.CashOnCash, Unit: UnitRatio},
		{Name: MetricDSCR, Value: m.DSCR, Unit: UnitMultiple},
		{Name: MetricBreakevenOccupancy, Value: m.BreakevenOccupancy, Unit: UnitRatio},
		{Name: MetricPricePerUnit, Value: m.PricePerUnit, Unit: UnitMoney},
		{Name: MetricRentSensitivityNOI, Value: m.RentSensitivityNOI, Unit: UnitMoney},
		{Name: MetricExpenseSensitivityNOI, Value: m.ExpenseSensitivityNOI, Unit: UnitMoney},
		{Name: MetricGrossPotentialIncome, Value: m.GrossPotentialIncome, Unit: UnitMoney},
		{Name: MetricAnnualCashFlow, Value: m.AnnualCashFlow, Unit: UnitMoney},
		{Name: MetricExpenseRatio, Value: m.ExpenseRatio, Unit: UnitRatio},
		{Name: MetricAncillaryIncome, Value: m.AncillaryIncome, Unit: UnitMoney},
		{Name: MetricProjectedSalePrice, Value: m.ProjectedSalePrice, Unit: UnitMoney},
	}
	for i := range out {
		out[i].Undefined = undefined[out[i].Name]
	}
	for _, f := range Fields {
		if f.Kind != Numeric {
			continue
		}
		out = append(out, Metric{Name: f.Label, Value: m.Inputs.Number(f.Name), Unit: f.Unit})
	}
	return out
}

// Map returns the name to value view used by charting and export.
func (m MetricsResult) Map() map[string]float64 {
	entries := m.Entries()
	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Value
	}
	return out
}

// Value looks up a metric by name.
func (m MetricsResult) Value(name string) (float64, bool) {
	for _, e := range m.Entries() {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

// IsUndefined reports whether the named metric hit the zero-guard.
func (m MetricsResult) IsUndefined(name string) bool {
	for _, n := range m.Undefined {
		if n == name {
			return true
		}
	}
	return false
}

// Select returns the entries named, in the order given. Unknown names are skipped.
func (m MetricsResult) Select(names ...string) []Metric {
	byName := make(map[string]Metric)
	for _, e := range m.Entries() {
		byName[e.Name] = e
	}
	out := make([]Metric, 0, len(names))
	for _, n := range names {
		if e, ok := byName[n]; ok {
			out = append(out, e)
		}
	}
	return out
}

// DerivedMetricNames lists the computed metrics in Entries order.
var DerivedMetricNames = []string{
	MetricNOI, MetricCapRate, MetricCashOnCash, MetricDSCR, MetricBreakevenOccupancy,
	MetricPricePerUnit, MetricRentSensitivityNOI, MetricExpenseSensitivityNOI,
	MetricGrossPotentialIncome, MetricAnnualCashFlow, MetricExpenseRatio,
	MetricAncillaryIncome, MetricProjectedSalePrice,
}

var derivedMetrics = func() map[string]bool {
	m := make(map[string]bool, len(DerivedMetricNames))
	for _, n := range DerivedMetricNames {
		m[n] = true
	}
	return m
}()

// IsDerivedMetric reports whether name is a computed metric rather than a
// pass-through input.
func IsDerivedMetric(name string) bool { return derivedMetrics[name] }

// CoreMetricNames are the headline metrics shown in charts by default.
var CoreMetricNames = []string{
	MetricNOI, MetricAnnualCashFlow, MetricRentSensitivityNOI, MetricExpenseSensitivityNOI,
	MetricGrossPotentialIncome, MetricAncillaryIncome,
}

// MarshalJSON encodes the metrics as a JSON object in Entries order.
func (m MetricsResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
