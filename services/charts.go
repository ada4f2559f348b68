package services

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"property-underwriter/models"
	"property-underwriter/utils"
)

// ChartKind selects the chart rendered for a set of metrics.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartPie  ChartKind = "pie"
	ChartLine ChartKind = "line"
)

// ChartKinds lists the supported kinds in menu order.
var ChartKinds = []ChartKind{ChartBar, ChartPie, ChartLine}

// ParseChartKind accepts bar, pie or line in any case.
func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ChartKinds {
		if k == known {
			return k, nil
		}
	}
	return "", &models.InvalidInputError{
		Field:  "chart_kind",
		Reason: fmt.Sprintf("unsupported chart type %q, choose bar, pie or line", s),
	}
}

// IsChartWarning reports whether err is one of the soft refusals of the
// renderer. Callers show these to the user instead of failing the request.
func IsChartWarning(err error) bool {
	return errors.Is(err, models.ErrNothingToPlot) ||
		errors.Is(err, models.ErrTooManySlices) ||
		errors.Is(err, models.ErrNegativeSlice)
}

var barColor = drawing.Color{R: 135, G: 206, B: 235, A: 255}

// ChartRenderer draws metrics as PNG images.
type ChartRenderer struct {
	logger *utils.Logger
	width  int
	height int
	pieMax int
}

// NewChartRenderer creates a renderer producing width x height images. Pie
// charts with more than pieMax slices are refused.
func NewChartRenderer(logger *utils.Logger, width, height, pieMax int) *ChartRenderer {
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 700
	}
	if pieMax <= 0 {
		pieMax = 10
	}
	return &ChartRenderer{logger: logger, width: width, height: height, pieMax: pieMax}
}

// Render draws metrics as a chart of the given kind and returns the PNG bytes.
func (c *ChartRenderer) Render(metrics []models.Metric, kind ChartKind) ([]byte, error) {
	if allZero(metrics) {
		return nil, models.ErrNothingToPlot
	}

	var (
		buf bytes.Buffer
		err error
	)
	switch kind {
	case ChartBar:
		err = c.bar(metrics).Render(chart.PNG, &buf)
	case ChartPie:
		var pie *chart.PieChart
		pie, err = c.pie(metrics)
		if err == nil {
			err = pie.Render(chart.PNG, &buf)
		}
	case ChartLine:
		err = c.line(metrics).Render(chart.PNG, &buf)
	default:
		_, err = ParseChartKind(string(kind))
	}
	if err != nil {
		if !IsChartWarning(err) {
			c.logger.Error("[charts] %s chart failed: %v", kind, err)
		}
		return nil, err
	}
	c.logger.Debug("[charts] rendered %s chart of %d metrics (%d bytes)", kind, len(metrics), buf.Len())
	return buf.Bytes(), nil
}

func (c *ChartRenderer) bar(metrics []models.Metric) chart.BarChart {
	bars := make([]chart.Value, len(metrics))
	for i, m := range metrics {
		bars[i] = chart.Value{
			Label: m.Name,
			Value: m.Value,
			Style: chart.Style{FillColor: barColor, StrokeColor: drawing.ColorBlack, StrokeWidth: 1},
		}
	}
	lo, hi := valueRange(metrics)
	return chart.BarChart{
		Title:        "Financial Metrics",
		Width:        c.width,
		Height:       c.height,
		Background:   chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:     barWidth(c.width, len(bars)),
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Name:  "Value ($)",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
}

func (c *ChartRenderer) pie(metrics []models.Metric) (*chart.PieChart, error) {
	if len(metrics) > c.pieMax {
		return nil, fmt.Errorf("%d metrics, limit %d: %w", len(metrics), c.pieMax, models.ErrTooManySlices)
	}
	values := make([]chart.Value, 0, len(metrics))
	for _, m := range metrics {
		if m.Value < 0 {
			return nil, fmt.Errorf("%s is %s: %w", m.Name, m.Display(), models.ErrNegativeSlice)
		}
		if m.Value == 0 {
			continue
		}
		values = append(values, chart.Value{Label: m.Name, Value: m.Value})
	}
	return &chart.PieChart{
		Title:  "Financial Metrics Distribution",
		Width:  c.width,
		Height: c.height,
		Values: values,
	}, nil
}

func (c *ChartRenderer) line(metrics []models.Metric) *chart.Chart {
	xs := make([]float64, len(metrics))
	ys := make([]float64, len(metrics))
	ticks := make([]chart.Tick, len(metrics))
	for i, m := range metrics {
		xs[i], ys[i] = float64(i), m.Value
		ticks[i] = chart.Tick{Value: float64(i), Label: m.Name}
	}
	lo, hi := valueRange(metrics)
	return &chart.Chart{
		Title:      "Financial Metrics",
		Width:      c.width,
		Height:     c.height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20}},
		XAxis: chart.XAxis{
			Name:  "Metrics",
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(metrics)) - 0.5},
		},
		YAxis: chart.YAxis{
			Name:  "Value ($)",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Financial Metrics",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: barColor,
					StrokeWidth: 2,
					DotColor:    barColor,
					DotWidth:    4,
				},
			},
		},
	}
}

func allZero(metrics []models.Metric) bool {
	for _, m := range metrics {
		if m.Value != 0 {
			return false
		}
	}
	return true
}

// valueRange returns a y-range that always contains 0 and has some headroom.
func valueRange(metrics []models.Metric) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, m := range metrics {
		lo = math.Min(lo, m.Value)
		hi = math.Max(hi, m.Value)
	}
	pad := (hi - lo) * 0.1
	if lo < 0 {
		lo -= pad
	}
	if hi > 0 {
		hi += pad
	}
	return lo, hi
}

func barWidth(width, n int) int {
	if n == 0 {
		return 40
	}
	w := width / (n * 2)
	if w > 80 {
		w = 80
	}
	if w < 8 {
		w = 8
	}
	return w
}

// Chart metric sets.
const (
	MetricSetCore = "core"
	MetricSetAll  = "all"
)

// ChartMetrics picks the metrics plotted for set: the headline money metrics
// for "core" (the default) or every entry for "all".
func ChartMetrics(m models.MetricsResult, set string) ([]models.Metric, error) {
	switch strings.ToLower(strings.TrimSpace(set)) {
	case "", MetricSetCore:
		return m.Select(models.CoreMetricNames...), nil
	case MetricSetAll:
		return m.Entries(), nil
	default:
		return nil, &models.InvalidInputError{
			Field:  "metrics",
			Reason: fmt.Sprintf("unknown metric set %q, choose core or all", set),
		}
	}
}
