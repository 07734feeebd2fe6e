package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"WorkflowPulse/internal/domain"
	"WorkflowPulse/internal/ports"
)

const (
	tableName = "workflows"

	// DefaultListLimit applies when the caller does not ask for a limit.
	DefaultListLimit = 100
	// MaxListLimit caps the read API.
	MaxListLimit = 1000
)

var listColumns = []string{
	"id", "workflow", "platform", "country", "source_url",
	"popularity_metrics", "popularity_score", "last_seen",
}

// SQLRepository persists workflow records into Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var _ ports.WorkflowRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB opened for dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
	}
}

// Migrate creates the workflows table and its indexes.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range r.dialect.schema() {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Upsert writes or replaces the record keyed by (workflow, platform, country).
func (r *SQLRepository) Upsert(ctx context.Context, record domain.WorkflowRecord) error {
	if r.db == nil {
		return fmt.Errorf("repository has no database")
	}

	metrics := string(record.PopularityMetrics)
	if metrics == "" {
		metrics = "{}"
	}

	query := r.builder.
		Insert(tableName).
		Columns("workflow", "platform", "country", "source_url", "popularity_metrics", "popularity_score", "last_seen").
		Values(record.Workflow, string(record.Platform), string(record.Country), nullable(record.SourceURL), metrics, record.PopularityScore, record.LastSeen.UTC()).
		Suffix(`ON CONFLICT (workflow, platform, country) DO UPDATE
			SET source_url = excluded.source_url,
			    popularity_metrics = excluded.popularity_metrics,
			    popularity_score = excluded.popularity_score,
			    last_seen = excluded.last_seen`)

	if _, err := query.RunWith(r.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("upsert workflow %q (%s/%s): %w", record.Workflow, record.Platform, record.Country, err)
	}
	return nil
}

// List returns records ordered by descending score; filters match case-insensitively.
func (r *SQLRepository) List(ctx context.Context, filter domain.RecordFilter) ([]domain.WorkflowRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository has no database")
	}

	query := r.builder.
		Select(listColumns...).
		From(tableName).
		OrderBy("popularity_score DESC", "id ASC").
		Limit(uint64(ClampLimit(filter.Limit)))

	if filter.Platform != "" {
		query = query.Where(sq.Expr("LOWER(platform) = LOWER(?)", filter.Platform))
	}
	if filter.Country != "" {
		query = query.Where(sq.Expr("LOWER(country) = LOWER(?)", filter.Country))
	}

	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var records []domain.WorkflowRecord
	for rows.Next() {
		var (
			rec       domain.WorkflowRecord
			platform  string
			country   string
			sourceURL sql.NullString
			metrics   string
		)
		if err := rows.Scan(&rec.ID, &rec.Workflow, &platform, &country, &sourceURL, &metrics, &rec.PopularityScore, &rec.LastSeen); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		rec.Platform = domain.Platform(platform)
		rec.Country = domain.Country(country)
		rec.SourceURL = sourceURL.String
		rec.PopularityMetrics = []byte(metrics)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// ClampLimit applies the read API defaults and ceiling. Zero and negative
// limits select DefaultListLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
