package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"property-underwriter/models"
	"property-underwriter/utils"
)

// Supported upload formats.
const (
	FormatCSV  = ".csv"
	FormatXLSX = ".xlsx"
)

// NormalizeResult is the normalized table plus column feedback for the user.
type NormalizeResult struct {
	Table           *models.RawTable
	MissingColumns  []string
	DetectedColumns []string
	// Sheet is the worksheet that was read; set for spreadsheet uploads only.
	Sheet      string
	SheetCount int
}

// Warning returns the non-fatal missing-columns warning, or nil.
func (r *NormalizeResult) Warning() *models.MissingColumnsWarning {
	if len(r.MissingColumns) == 0 {
		return nil
	}
	return &models.MissingColumnsWarning{Columns: r.MissingColumns}
}

// Normalizer turns an uploaded CSV or XLSX file into a RawTable whose columns
// are canonicalised, coerced and padded with defaults for known columns.
type Normalizer struct {
	logger    *utils.Logger
	threshold float64
	aliases   map[string]string // lower-cased header -> canonical column
}

// NewNormalizer creates a Normalizer. threshold is the share of non-empty cells
// that must parse as numbers for a column to be coerced; aliases maps extra
// header spellings to canonical column names.
func NewNormalizer(logger *utils.Logger, threshold float64, aliases map[string]string) *Normalizer {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.9
	}
	n := &Normalizer{logger: logger, threshold: threshold, aliases: make(map[string]string)}
	for alt, canonical := range aliases {
		n.aliases[headerKey(alt)] = canonical
	}
	return n
}

// Normalize parses name/r and applies the column rules. The format is taken
// from the extension of name.
func (n *Normalizer) Normalize(name string, r io.Reader, required, optional []string) (*NormalizeResult, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var (
		header []string
		rows   [][]string
		res    = &NormalizeResult{}
		err    error
	)
	switch ext {
	case FormatCSV:
		header, rows, err = readCSV(r)
	case FormatXLSX:
		header, rows, res.Sheet, res.SheetCount, err = n.readXLSX(r)
	default:
		return nil, &models.UnsupportedFormatError{Name: name, Ext: ext}
	}
	if err != nil {
		return nil, err
	}

	header = n.canonicalHeader(header, required, optional)
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	for _, col := range required {
		if !present[col] {
			res.MissingColumns = append(res.MissingColumns, col)
		}
	}
	for _, col := range optional {
		if present[col] {
			res.DetectedColumns = append(res.DetectedColumns, col)
		}
	}

	table := &models.RawTable{Columns: header, Rows: make([]models.Row, len(rows))}
	for i := range rows {
		table.Rows[i] = make(models.Row, len(header)+len(required)+len(optional))
	}
	for ci, col := range header {
		cells := make([]string, len(rows))
		for ri, rec := range rows {
			if ci < len(rec) {
				cells[ri] = rec[ci]
			}
		}
		values, numeric := n.coerceColumn(cells)
		if !numeric {
			n.logger.Debug("[normalizer] column %q kept as text", col)
		}
		for ri, v := range values {
			table.Rows[ri][col] = v
		}
	}

	// Absent required columns are filled too, so the table always covers
	// required ∪ optional; they stay listed in MissingColumns.
	for _, col := range append(append([]string{}, required...), optional...) {
		if present[col] {
			continue
		}
		present[col] = true
		table.Columns = append(table.Columns, col)
		table.Filled = append(table.Filled, col)
		for _, row := range table.Rows {
			row[col] = models.NumberValue(0)
		}
	}

	res.Table = table
	n.logger.Info("[normalizer] %s: %d rows, %d columns (%d detected optional, %d filled)",
		name, table.Len(), len(table.Columns), len(res.DetectedColumns), len(table.Filled))
	return res, nil
}

// coerceColumn applies the column-wise rule: empty cells are 0; if at least
// threshold of the non-empty cells parse as numbers the column is numeric and
// unparseable cells become 0, otherwise every non-empty cell stays text,
// numeric-looking ones included.
func (n *Normalizer) coerceColumn(cells []string) ([]models.Value, bool) {
	out := make([]models.Value, len(cells))
	parsed := make([]float64, len(cells))
	nonEmpty, numeric := 0, 0

	for i, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		nonEmpty++
		if v, good := models.ParseNumber(c); good {
			parsed[i] = v
			numeric++
		}
	}

	isNumeric := nonEmpty == 0 || float64(numeric)/float64(nonEmpty) >= n.threshold
	for i, c := range cells {
		switch {
		case strings.TrimSpace(c) == "":
			out[i] = models.NumberValue(0)
		case !isNumeric:
			out[i] = models.TextCell(strings.TrimSpace(c))
		default:
			// parsed[i] is 0 for cells that failed to parse.
			out[i] = models.NumberValue(parsed[i])
		}
	}
	return out, isNumeric
}

// canonicalHeader trims header cells and renames those matching a known column
// case-insensitively, or through an alias, to the canonical spelling. Blank and
// duplicate names get positional suffixes so every column stays addressable.
func (n *Normalizer) canonicalHeader(header []string, known ...[]string) []string {
	canonical := make(map[string]string, len(n.aliases))
	for k, v := range n.aliases {
		canonical[k] = v
	}
	for _, cols := range known {
		for _, col := range cols {
			canonical[headerKey(col)] = col
		}
	}

	out := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.Join(strings.Fields(h), " ")
		if c, ok := canonical[headerKey(name)]; ok {
			name = c
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		for base, k := name, 2; seen[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		if name != strings.TrimSpace(h) && strings.TrimSpace(h) != "" {
			n.logger.Debug("[normalizer] header %q read as %q", h, name)
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func headerKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, &models.ParseError{Format: "csv", Err: err}
	}
	if len(records) == 0 {
		return nil, nil, &models.ParseError{Format: "csv", Err: errors.New("file is empty")}
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, trimRows(records[1:], len(header)), nil
}

// readXLSX reads the first worksheet with raw (unformatted) cell values.
func (n *Normalizer) readXLSX(r io.Reader) ([]string, [][]string, string, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, "", 0, &models.ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, "", 0, &models.ParseError{Format: "xlsx", Err: errors.New("workbook has no sheets")}
	}
	sheet := sheets[0]
	if len(sheets) > 1 {
		n.logger.Info("[normalizer] Multiple sheets found (%d), using the first: %s", len(sheets), sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, sheet, len(sheets), &models.ParseError{Format: "xlsx", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil, sheet, len(sheets), &models.ParseError{Format: "xlsx", Err: fmt.Errorf("sheet %q is empty", sheet)}
	}
	return rows[0], trimRows(rows[1:], len(rows[0])), sheet, len(sheets), nil
}

// trimRows drops blank trailing rows and cells beyond the header width.
// Short rows are padded later, column by column.
func trimRows(rows [][]string, width int) [][]string {
	end := len(rows)
	for end > 0 && blank(rows[end-1]) {
		end--
	}
	rows = rows[:end]
	for i, r := range rows {
		if len(r) > width {
			rows[i] = r[:width]
		}
	}
	return rows
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
