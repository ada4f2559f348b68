package services

import (
	"property-underwriter/models"
	"property-underwriter/utils"
)

// Merger combines a normalized table with the manually entered fields.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// ManualTable synthesises the one-row table used when nothing was uploaded:
// just income and expenses from the manual entry.
func ManualTable(manual models.InputRecord) *models.RawTable {
	return &models.RawTable{
		Columns: []string{models.ColumnIncome, models.ColumnExpenses},
		Rows: []models.Row{{
			models.ColumnIncome:   models.NumberValue(manual.TotalIncome),
			models.ColumnExpenses: models.NumberValue(manual.TotalExpenses),
		}},
	}
}

// Merge builds the InputRecord for one analysis. Fields backed by a column that
// the source table really carried take the first row's value; every other field
// keeps the manual value. A nil table is treated as ManualTable(manual).
func (m *Merger) Merge(table *models.RawTable, manual models.InputRecord) models.InputRecord {
	if table == nil {
		table = ManualTable(manual)
	}
	rec := manual

	row, ok := table.First()
	if !ok {
		m.logger.Warn("[merger] Table has no data rows, using manual values only")
		return rec
	}

	fromTable := 0
	for _, f := range models.Fields {
		if f.Column == "" || !table.FromSource(f.Column) {
			continue
		}
		v := row[f.Column]
		if v.IsText {
			m.logger.Warn("[merger] Column %q holds text %q, reading it as 0", f.Column, v.Str)
		}
		rec = rec.With(f.Name, v.Float())
		fromTable++
	}

	m.logger.Debug("[merger] %d fields from table, %d from manual entry",
		fromTable, len(models.Fields)-fromTable)
	return rec
}
