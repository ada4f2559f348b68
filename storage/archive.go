package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"property-underwriter/models"
	"property-underwriter/utils"
)

// Archive logs every exported analysis to PostgreSQL or SQLite. It is an
// append-only export log; analyses are never loaded back from it.
type Archive struct {
	db     *sqlx.DB
	driver string
	logger *utils.Logger
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	id                TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	source            TEXT NOT NULL,
	metrics           TEXT NOT NULL,
	undefined_metrics TEXT NOT NULL DEFAULT '[]',
	insight_kind      TEXT NOT NULL DEFAULT '',
	insight           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

type archiveRow struct {
	ID          string `db:"id"`
	CreatedAt   string `db:"created_at"`
	Source      string `db:"source"`
	Metrics     string `db:"metrics"`
	Undefined   string `db:"undefined_metrics"`
	InsightKind string `db:"insight_kind"`
	Insight     string `db:"insight"`
}

// OpenArchive connects with driver "postgres" or "sqlite", waits for the
// database to answer and creates the schema.
func OpenArchive(ctx context.Context, driver, dsn string, logger *utils.Logger) (*Archive, error) {
	if driver == "sqlite" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	ping := utils.RetryConfig{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, Logger: logger}
	if err := ping.Do(ctx, driver+" ping", db.PingContext); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	logger.Info("[archive] Logging analyses to %s", driver)
	return &Archive{db: db, driver: driver, logger: logger}, nil
}

// Write records the report. Writing the same analysis again replaces its
// insight, so a later export with commentary updates the entry.
func (a *Archive) Write(ctx context.Context, r *models.Report) error {
	metrics, err := json.Marshal(r.Analysis.Metrics)
	if err != nil {
		return fmt.Errorf("archive: encode metrics: %w", err)
	}
	undefined, err := json.Marshal(r.Analysis.Undefined)
	if err != nil {
		return fmt.Errorf("archive: encode undefined: %w", err)
	}
	row := archiveRow{
		ID:          r.Analysis.ID,
		CreatedAt:   r.Analysis.CreatedAt.UTC().Format(time.RFC3339Nano),
		Source:      r.Analysis.Source,
		Metrics:     string(metrics),
		Undefined:   string(undefined),
		InsightKind: r.InsightKind,
		Insight:     r.Insight,
	}
	_, err = a.db.NamedExecContext(ctx, `
		INSERT INTO analyses (id, created_at, source, metrics, undefined_metrics, insight_kind, insight)
		VALUES (:id, :created_at, :source, :metrics, :undefined_metrics, :insight_kind, :insight)
		ON CONFLICT (id) DO UPDATE SET insight_kind = excluded.insight_kind, insight = excluded.insight
	`, row)
	if err != nil {
		return fmt.Errorf("archive: insert %s: %w", row.ID, err)
	}
	a.logger.Debug("[archive] %s stored", row.ID)
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
