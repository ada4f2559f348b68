package storage

import (
	"context"
	"fmt"
	"strings"

	"property-underwriter/models"
)

// ReportWriter is the interface any report sink must satisfy.
type ReportWriter interface {
	Write(ctx context.Context, r *models.Report) error
	Close() error
}

// Exporter renders a report as a downloadable document.
type Exporter interface {
	// Format is the file extension without the dot.
	Format() string
	ContentType() string
	Export(ctx context.Context, r *models.Report) ([]byte, error)
}

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ExportFormats lists the supported formats.
var ExportFormats = []string{FormatCSV, FormatXLSX, FormatPDF}

// NewExporter returns the exporter for format. pdf is only consulted for the
// pdf format and may be nil otherwise.
func NewExporter(format string, pdf *PDFRenderer) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return CSVExporter{}, nil
	case FormatXLSX:
		return XLSXExporter{}, nil
	case FormatPDF:
		if pdf == nil {
			return nil, fmt.Errorf("pdf export unavailable: no Chromium found")
		}
		return pdf, nil
	default:
		return nil, &models.InvalidInputError{
			Field:  "format",
			Reason: fmt.Sprintf("unsupported export format %q, choose csv, xlsx or pdf", format),
		}
	}
}
