package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// FieldKind distinguishes numeric inputs from free-text inputs.
type FieldKind int

const (
	Numeric FieldKind = iota
	Text
)

// Unit tells presentation code how to format a value.
type Unit int

const (
	UnitPlain Unit = iota
	UnitMoney
	UnitRatio   // fraction, 0.06 == 6%
	UnitPercent // already expressed in percent points
	UnitMultiple
	UnitCount
	UnitYear
)

// Field describes one entry of the fixed underwriting input set.
type Field struct {
	Name   string
	Label  string
	Kind   FieldKind
	Unit   Unit
	Column string // spreadsheet column this field is read from; empty when manual-only
	Min    float64
	Max    float64

	num  func(*InputRecord) *float64
	text func(*InputRecord) *string
}

// Field names.
const (
	FieldOfferPrice               = "offer_price"
	FieldTotalIncome              = "total_income"
	FieldTotalExpenses            = "total_expenses"
	FieldEquity                   = "equity"
	FieldDebtService              = "debt_service"
	FieldMarketRent               = "market_rent"
	FieldTargetCashOnCash         = "cash_on_cash_return"
	FieldProjectedCapRateAtSale   = "projected_cap_rate_at_sale"
	FieldTargetBreakevenOccupancy = "breakeven_occupancy"
	FieldYearBuilt                = "year_built"
	FieldNumUnits                 = "num_units"
	FieldUnitMix                  = "unit_mix"
	FieldOccupancyRate            = "occupancy_rate_trends"
	FieldMarketGrowthRate         = "market_growth_rate"
	FieldPricePerUnit             = "price_per_unit"
	FieldAverageRent              = "average_in_place_rent"
	FieldSubmarketTrends          = "submarket_trends"
	FieldEmploymentGrowthRate     = "employment_growth_rate"
	FieldCrimeRate                = "crime_rate"
	FieldSchoolRating             = "school_ratings"
	FieldRenovationCost           = "renovation_cost"
	FieldCapEx                    = "capex"
	FieldHoldingPeriod            = "holding_period"
	FieldRentVariation            = "rent_variation"
	FieldExpenseVariation         = "expense_variation"
	FieldParkingIncome            = "parking_income"
	FieldLaundryIncome            = "laundry_income"
	FieldTenantType               = "tenant_type"
)

// Spreadsheet columns.
const (
	ColumnIncome           = "Income"
	ColumnExpenses         = "Expenses"
	ColumnEquity           = "Equity"
	ColumnDebtService      = "Debt Service"
	ColumnOccupancyRate    = "Occupancy Rate"
	ColumnMarketRent       = "Market Rent"
	ColumnCapEx            = "CapEx"
	ColumnYearBuilt        = "Year Built"
	ColumnUnits            = "Units"
	ColumnMarketGrowthRate = "Market Growth Rate"
	ColumnPricePerUnit     = "Price Per Unit"
)

// RequiredColumns must be present in an uploaded file; their absence is reported, not fatal.
var RequiredColumns = []string{ColumnIncome, ColumnExpenses}

// OptionalColumns are filled with 0 when absent from an uploaded file.
var OptionalColumns = []string{
	ColumnEquity, ColumnDebtService, ColumnOccupancyRate, ColumnMarketRent,
	ColumnCapEx, ColumnYearBuilt, ColumnUnits, ColumnMarketGrowthRate, ColumnPricePerUnit,
}

var unbounded = math.Inf(1)

// Fields is the fixed input catalog in display order.
var Fields = []Field{
	{Name: FieldOfferPrice, Label: "Offer Price", Unit: UnitMoney, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.OfferPrice }},
	{Name: FieldTotalIncome, Label: "Total Income", Unit: UnitMoney, Column: ColumnIncome, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.TotalIncome }},
	{Name: FieldTotalExpenses, Label: "Total Expenses", Unit: UnitMoney, Column: ColumnExpenses, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.TotalExpenses }},
	{Name: FieldEquity, Label: "Equity", Unit: UnitMoney, Column: ColumnEquity, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.Equity }},
	{Name: FieldDebtService, Label: "Debt Service", Unit: UnitMoney, Column: ColumnDebtService, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.DebtService }},
	{Name: FieldMarketRent, Label: "Market Rent", Unit: UnitMoney, Column: ColumnMarketRent, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.MarketRent }},
	{Name: FieldTargetCashOnCash, Label: "Target Cash-on-Cash Return", Unit: UnitPercent, Min: -100, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.TargetCashOnCash }},
	{Name: FieldProjectedCapRateAtSale, Label: "Projected Cap Rate at Sale", Unit: UnitPercent, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.ProjectedCapRateAtSale }},
	{Name: FieldTargetBreakevenOccupancy, Label: "Target Breakeven Occupancy", Unit: UnitPercent, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.TargetBreakevenOccupancy }},
	{Name: FieldYearBuilt, Label: "Year Built", Unit: UnitYear, Column: ColumnYearBuilt, Min: 1800, Max: 2100,
		num: func(r *InputRecord) *float64 { return &r.YearBuilt }},
	{Name: FieldNumUnits, Label: "Number of Units", Unit: UnitCount, Column: ColumnUnits, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.NumUnits }},
	{Name: FieldUnitMix, Label: "Unit Mix", Kind: Text,
		text: func(r *InputRecord) *string { return &r.UnitMix }},
	{Name: FieldOccupancyRate, Label: "Occupancy Rate", Unit: UnitPercent, Column: ColumnOccupancyRate, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.OccupancyRate }},
	{Name: FieldMarketGrowthRate, Label: "Market Growth Rate", Unit: UnitPercent, Column: ColumnMarketGrowthRate, Min: -100, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.MarketGrowthRate }},
	{Name: FieldPricePerUnit, Label: "Listed Price per Unit", Unit: UnitMoney, Column: ColumnPricePerUnit, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.PricePerUnit }},
	{Name: FieldAverageRent, Label: "Average In-Place Rent", Unit: UnitMoney, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.AverageRent }},
	{Name: FieldSubmarketTrends, Label: "Submarket Trends", Kind: Text,
		text: func(r *InputRecord) *string { return &r.SubmarketTrends }},
	{Name: FieldEmploymentGrowthRate, Label: "Employment Growth Rate", Unit: UnitPercent, Min: -100, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.EmploymentGrowthRate }},
	{Name: FieldCrimeRate, Label: "Crime Rate", Unit: UnitPercent, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.CrimeRate }},
	{Name: FieldSchoolRating, Label: "School Rating", Max: 10,
		num: func(r *InputRecord) *float64 { return &r.SchoolRating }},
	{Name: FieldRenovationCost, Label: "Renovation Cost", Unit: UnitMoney, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.RenovationCost }},
	{Name: FieldCapEx, Label: "CapEx", Unit: UnitMoney, Column: ColumnCapEx, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.CapEx }},
	{Name: FieldHoldingPeriod, Label: "Holding Period", Unit: UnitCount, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.HoldingPeriod }},
	{Name: FieldRentVariation, Label: "Rent Variation", Unit: UnitPercent, Min: -100, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.RentVariation }},
	{Name: FieldExpenseVariation, Label: "Expense Variation", Unit: UnitPercent, Min: -100, Max: 100,
		num: func(r *InputRecord) *float64 { return &r.ExpenseVariation }},
	{Name: FieldParkingIncome, Label: "Parking Income", Unit: UnitMoney, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.ParkingIncome }},
	{Name: FieldLaundryIncome, Label: "Laundry Income", Unit: UnitMoney, Max: unbounded,
		num: func(r *InputRecord) *float64 { return &r.LaundryIncome }},
	{Name: FieldTenantType, Label: "Tenant Type", Kind: Text,
		text: func(r *InputRecord) *string { return &r.TenantType }},
}

var fieldsByName = func() map[string]*Field {
	m := make(map[string]*Field, len(Fields))
	for i := range Fields {
		m[Fields[i].Name] = &Fields[i]
	}
	return m
}()

// LookupField returns the catalog entry for name.
func LookupField(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// InputRecord is the flat set of underwriting inputs for one analysis run.
// Numeric fields default to 0, text fields to "".
type InputRecord struct {
	OfferPrice               float64 `json:"offer_price"`
	TotalIncome              float64 `json:"total_income"`
	TotalExpenses            float64 `json:"total_expenses"`
	Equity                   float64 `json:"equity"`
	DebtService              float64 `json:"debt_service"`
	MarketRent               float64 `json:"market_rent"`
	TargetCashOnCash         float64 `json:"cash_on_cash_return"`
	ProjectedCapRateAtSale   float64 `json:"projected_cap_rate_at_sale"`
	TargetBreakevenOccupancy float64 `json:"breakeven_occupancy"`
	YearBuilt                float64 `json:"year_built"`
	NumUnits                 float64 `json:"num_units"`
	UnitMix                  string  `json:"unit_mix"`
	OccupancyRate            float64 `json:"occupancy_rate_trends"`
	MarketGrowthRate         float64 `json:"market_growth_rate"`
	PricePerUnit             float64 `json:"price_per_unit"`
	AverageRent              float64 `json:"average_in_place_rent"`
	SubmarketTrends          string  `json:"submarket_trends"`
	EmploymentGrowthRate     float64 `json:"employment_growth_rate"`
	CrimeRate                float64 `json:"crime_rate"`
	SchoolRating             float64 `json:"school_ratings"`
	RenovationCost           float64 `json:"renovation_cost"`
	CapEx                    float64 `json:"capex"`
	HoldingPeriod            float64 `json:"holding_period"`
	RentVariation            float64 `json:"rent_variation"`
	ExpenseVariation         float64 `json:"expense_variation"`
	ParkingIncome            float64 `json:"parking_income"`
	LaundryIncome            float64 `json:"laundry_income"`
	TenantType               string  `json:"tenant_type"`
}

// Number returns the numeric field called name, or 0 if name is not numeric.
func (r InputRecord) Number(name string) float64 {
	f, ok := fieldsByName[name]
	if !ok || f.num == nil {
		return 0
	}
	return *f.num(&r)
}

// TextValue returns the text field called name, or "" if name is not textual.
func (r InputRecord) TextValue(name string) string {
	f, ok := fieldsByName[name]
	if !ok || f.text == nil {
		return ""
	}
	return *f.text(&r)
}

// With returns a copy of r with the numeric field name set to v.
func (r InputRecord) With(name string, v float64) InputRecord {
	if f, ok := fieldsByName[name]; ok && f.num != nil {
		*f.num(&r) = v
	}
	return r
}

// WithText returns a copy of r with the text field name set to s.
func (r InputRecord) WithText(name, s string) InputRecord {
	if f, ok := fieldsByName[name]; ok && f.text != nil {
		*f.text(&r) = s
	}
	return r
}

// Validate reports non-finite numeric values.
func (r InputRecord) Validate() error {
	for _, f := range Fields {
		if f.num == nil {
			continue
		}
		v := *f.num(&r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidInputError{Field: f.Name, Reason: "value is not a finite number"}
		}
	}
	return nil
}

// CheckRanges applies the catalog ranges to every numeric field that is set.
// Zero means unset and is never checked.
func (r InputRecord) CheckRanges() error {
	var errs []error
	for _, f := range Fields {
		if f.num == nil {
			continue
		}
		v := *f.num(&r)
		if v == 0 {
			continue
		}
		if v < f.Min || v > f.Max {
			errs = append(errs, &InvalidInputError{
				Field:  f.Name,
				Reason: fmt.Sprintf("%g is outside %s", v, describeRange(f.Min, f.Max)),
			})
		}
	}
	return errors.Join(errs...)
}

func describeRange(min, max float64) string {
	if math.IsInf(max, 1) {
		return fmt.Sprintf("[%g, ∞)", min)
	}
	return fmt.Sprintf("[%g, %g]", min, max)
}

// RecordFromMap builds an InputRecord from loosely typed values, as decoded from
// JSON or form posts. Numeric strings such as "$1,200" are coerced. Unknown keys
// are returned sorted so the caller can report them.
func RecordFromMap(values map[string]any) (InputRecord, []string, error) {
	var (
		rec     InputRecord
		unknown []string
	)
	for key, raw := range values {
		f, ok := fieldsByName[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if f.text != nil {
			*f.text(&rec) = textOf(raw)
			continue
		}
		v, err := numberOf(raw)
		if err != nil {
			return InputRecord{}, nil, &InvalidInputError{Field: key, Reason: err.Error()}
		}
		*f.num(&rec) = v
	}
	sort.Strings(unknown)
	return rec, unknown, nil
}

func numberOf(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		n, ok := ParseNumber(v)
		if !ok {
			return 0, fmt.Errorf("%q is not a number", v)
		}
		return n, nil
	case bool:
		return 0, fmt.Errorf("boolean %t is not a number", v)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}

func textOf(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// ParseNumber parses spreadsheet-style numbers: currency symbols, thousands
// separators and a trailing percent sign are ignored, and "(1,234)" is negative.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '%', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
