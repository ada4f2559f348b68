package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"property-underwriter/models"
	"property-underwriter/utils"
)

// FileWriter saves each report through an Exporter into a directory, one file
// per analysis. It is safe for concurrent use.
type FileWriter struct {
	dir      string
	exporter Exporter
	logger   *utils.Logger
}

// NewFileWriter creates dir if needed and returns a writer for exporter.
func NewFileWriter(dir string, exporter Exporter, logger *utils.Logger) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%s: create output dir: %w", exporter.Format(), err)
	}
	return &FileWriter{dir: dir, exporter: exporter, logger: logger}, nil
}

// Path returns the file a report is written to: <source>-<id prefix>.<format>.
func (w *FileWriter) Path(r *models.Report) string {
	stem := strings.TrimSuffix(filepath.Base(r.Analysis.Source), filepath.Ext(r.Analysis.Source))
	id := r.Analysis.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.%s", stem, id, w.exporter.Format()))
}

func (w *FileWriter) Write(ctx context.Context, r *models.Report) error {
	data, err := w.exporter.Export(ctx, r)
	if err != nil {
		return err
	}
	path := w.Path(r)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%s: write %q: %w", w.exporter.Format(), path, err)
	}
	w.logger.Info("[export] %s report saved to %s", strings.ToUpper(w.exporter.Format()), path)
	return nil
}

func (w *FileWriter) Close() error { return nil }
