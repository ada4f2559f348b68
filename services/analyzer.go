package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"property-underwriter/models"
	"property-underwriter/utils"
)

// Upload is a spreadsheet handed to the pipeline. Name carries the extension
// that selects the parser.
type Upload struct {
	Name string
	Body io.Reader
}

// Analyzer runs normalize, merge and compute for one analysis request.
type Analyzer struct {
	logger      *utils.Logger
	normalizer  *Normalizer
	merger      *Merger
	engine      *MetricsEngine
	previewRows int

	newID func() string
	now   func() time.Time
}

// NewAnalyzer wires the pipeline stages.
func NewAnalyzer(logger *utils.Logger, normalizer *Normalizer, previewRows int) *Analyzer {
	return &Analyzer{
		logger:      logger,
		normalizer:  normalizer,
		merger:      NewMerger(logger),
		engine:      NewMetricsEngine(),
		previewRows: previewRows,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Analyze runs the pipeline. With a nil upload the manual fields alone drive
// the run. The result is complete or an error is returned; there is no partial
// analysis.
func (a *Analyzer) Analyze(upload *Upload, manual models.InputRecord) (*models.Analysis, error) {
	out := &models.Analysis{
		ID:              a.newID(),
		CreatedAt:       a.now().UTC(),
		Source:          models.ManualSource,
		MissingColumns:  []string{},
		DetectedColumns: []string{},
	}

	var table *models.RawTable
	if upload != nil {
		res, err := a.normalizer.Normalize(upload.Name, upload.Body, models.RequiredColumns, models.OptionalColumns)
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", upload.Name, err)
		}
		table = res.Table
		out.Source = filepath.Base(upload.Name)
		out.Sheet, out.SheetCount = res.Sheet, res.SheetCount
		if w := res.Warning(); w != nil {
			out.MissingColumns = w.Columns
			out.MissingWarning = w
			a.logger.Warn("[analyzer] %s: %v, treating them as 0", out.Source, w)
		}
		if res.DetectedColumns != nil {
			out.DetectedColumns = res.DetectedColumns
		}
	} else {
		table = ManualTable(manual)
	}

	rec := a.merger.Merge(table, manual)
	metrics, err := a.engine.Compute(rec)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	out.Inputs = rec
	out.Metrics = metrics
	out.Undefined = append([]string{}, metrics.Undefined...)
	if a.previewRows > 0 {
		out.Preview = table.Head(a.previewRows)
	}

	a.logger.Info("[analyzer] %s (%s): NOI %s, cap rate %s, %d undefined metrics",
		out.ID, out.Source, utils.FormatMoney(metrics.NOI), utils.FormatPercent(metrics.CapRate), len(out.Undefined))
	return out, nil
}

// AnalyzeFile opens path and analyzes it.
func (a *Analyzer) AnalyzeFile(path string, manual models.InputRecord) (*models.Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return a.Analyze(&Upload{Name: path, Body: f}, manual)
}
