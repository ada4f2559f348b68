package models

import "time"

// Analysis is the outcome of one run of the normalize, merge and compute pipeline.
type Analysis struct {
	ID              string        `json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	Source          string        `json:"source"`
	Sheet           string        `json:"sheet,omitempty"`
	SheetCount      int           `json:"sheet_count,omitempty"`
	MissingColumns  []string      `json:"missing_columns"`
	DetectedColumns []string      `json:"detected_columns"`
	Inputs          InputRecord   `json:"inputs"`
	Metrics         MetricsResult `json:"metrics"`
	Undefined       []string      `json:"undefined"`
	Preview         *RawTable     `json:"preview,omitempty"`

	// MissingWarning is set when the upload lacked required columns.
	MissingWarning *MissingColumnsWarning `json:"-"`
}

// ManualSource marks analyses built without an upload.
const ManualSource = "manual"

// Report bundles an analysis with its optional presentation artefacts for export.
type Report struct {
	Analysis    *Analysis
	InsightKind string
	Insight     string
	ChartKind   string
	Chart       []byte // PNG
}
