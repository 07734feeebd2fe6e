package storage

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and database/sql driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open opens and pings the database.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// single writer; concurrent runs serialize on the connection
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

func (d Dialect) schema() []string {
	if d == Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS workflows (
				id                 BIGSERIAL PRIMARY KEY,
				workflow           VARCHAR(512) NOT NULL,
				platform           VARCHAR(50) NOT NULL,
				country            VARCHAR(10) NOT NULL,
				source_url         TEXT,
				popularity_metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
				popularity_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
				last_seen          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (workflow, platform, country)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_workflows_score ON workflows (popularity_score DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_workflows_platform ON workflows (platform)`,
			`CREATE INDEX IF NOT EXISTS idx_workflows_country ON workflows (country)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow           TEXT NOT NULL,
			platform           TEXT NOT NULL,
			country            TEXT NOT NULL,
			source_url         TEXT,
			popularity_metrics TEXT NOT NULL DEFAULT '{}',
			popularity_score   REAL NOT NULL DEFAULT 0,
			last_seen          DATETIME NOT NULL,
			UNIQUE (workflow, platform, country)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_score ON workflows (popularity_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_platform ON workflows (platform)`,
		`CREATE INDEX IF NOT EXISTS idx_workflows_country ON workflows (country)`,
	}
}
