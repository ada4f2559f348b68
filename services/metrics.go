package services

import (
	"math"

	"property-underwriter/models"
)

// MetricsEngine derives underwriting metrics from an InputRecord. It is a pure
// function of its input and safe for concurrent use.
type MetricsEngine struct{}

// NewMetricsEngine creates a MetricsEngine.
func NewMetricsEngine() *MetricsEngine {
	return &MetricsEngine{}
}

// Compute applies the metric formulas. A ratio whose divisor is not positive,
// or any value that overflows, is reported as 0 and listed in Undefined.
// Non-finite inputs are rejected.
func (e *MetricsEngine) Compute(rec models.InputRecord) (models.MetricsResult, error) {
	if err := rec.Validate(); err != nil {
		return models.MetricsResult{}, err
	}

	res := models.MetricsResult{Inputs: rec}
	undefined := make(map[string]bool)
	guard := func(name string, num, den float64) float64 {
		v, ok := ratio(num, den)
		if !ok {
			undefined[name] = true
		}
		return v
	}
	keep := func(name string, v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			undefined[name] = true
			return 0
		}
		return v
	}

	income, expenses := rec.TotalIncome, rec.TotalExpenses

	res.NOI = keep(models.MetricNOI, income-expenses)
	cashFlow := keep(models.MetricAnnualCashFlow, res.NOI-rec.DebtService)
	gpi := income
	if rec.MarketRent > 0 && rec.NumUnits > 0 {
		gpi = keep(models.MetricGrossPotentialIncome, rec.MarketRent*rec.NumUnits*12)
	}

	res.CapRate = guard(models.MetricCapRate, res.NOI, rec.OfferPrice)
	res.CashOnCash = guard(models.MetricCashOnCash, cashFlow, rec.Equity)
	res.DSCR = guard(models.MetricDSCR, res.NOI, rec.DebtService)
	res.BreakevenOccupancy = guard(models.MetricBreakevenOccupancy, expenses+rec.DebtService, gpi)
	res.PricePerUnit = guard(models.MetricPricePerUnit, rec.OfferPrice, rec.NumUnits)

	res.RentSensitivityNOI = keep(models.MetricRentSensitivityNOI, income*(1+rec.RentVariation/100)-expenses)
	res.ExpenseSensitivityNOI = keep(models.MetricExpenseSensitivityNOI, income-expenses*(1+rec.ExpenseVariation/100))

	res.GrossPotentialIncome = gpi
	res.AnnualCashFlow = cashFlow
	res.ExpenseRatio = guard(models.MetricExpenseRatio, expenses, income)
	res.AncillaryIncome = keep(models.MetricAncillaryIncome, rec.ParkingIncome+rec.LaundryIncome)

	exitNOI := res.NOI * math.Pow(1+rec.MarketGrowthRate/100, rec.HoldingPeriod)
	res.ProjectedSalePrice = guard(models.MetricProjectedSalePrice, exitNOI, rec.ProjectedCapRateAtSale/100)

	for _, name := range models.DerivedMetricNames {
		if undefined[name] {
			res.Undefined = append(res.Undefined, name)
		}
	}
	return res, nil
}

func ratio(num, den float64) (float64, bool) {
	if den <= 0 {
		return 0, false
	}
	v := num / den
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
