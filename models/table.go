package models

import (
	"encoding/json"
	"strconv"
)

// Value is a single spreadsheet cell after normalization: a number or text.
type Value struct {
	Num    float64
	Str    string
	IsText bool
}

// NumberValue wraps a numeric cell.
func NumberValue(v float64) Value { return Value{Num: v} }

// TextCell wraps a text cell.
func TextCell(s string) Value { return Value{Str: s, IsText: true} }

// Float returns the numeric value; text cells read as 0.
func (v Value) Float() float64 {
	if v.IsText {
		return 0
	}
	return v.Num
}

func (v Value) String() string {
	if v.IsText {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Str)
	}
	return json.Marshal(v.Num)
}

// Row maps column name to cell.
type Row map[string]Value

// RawTable is a parsed spreadsheet. After normalization every row carries
// every column in Columns.
type RawTable struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	// Filled lists columns the normalizer added because the source lacked them.
	Filled []string `json:"filled,omitempty"`
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether col is a column of the table.
func (t *RawTable) Has(col string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// FromSource reports whether col was present in the parsed source rather than
// added as a default fill.
func (t *RawTable) FromSource(col string) bool {
	if !t.Has(col) {
		return false
	}
	for _, c := range t.Filled {
		if c == col {
			return false
		}
	}
	return true
}

// First returns the first data row.
func (t *RawTable) First() (Row, bool) {
	if t.Len() == 0 {
		return nil, false
	}
	return t.Rows[0], true
}

// Head returns a shallow copy limited to the first n rows, for previews.
func (t *RawTable) Head(n int) *RawTable {
	if t == nil {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &RawTable{Columns: t.Columns, Rows: t.Rows[:n], Filled: t.Filled}
}
