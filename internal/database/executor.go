// Package database provides the safety gate and bounded executor for the
// embedded trips dataset.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Avinash-blip/Final-AI-CoPilot/internal/config"
	"github.com/Avinash-blip/Final-AI-CoPilot/internal/observability"
)

// Row maps a column name to a scalar value (string, int64, float64, or nil).
type Row = map[string]any

// Executor runs validated SELECT statements against the dataset, bounded by
// a row cap.
type Executor struct {
	logger  *observability.Logger
	db      *sql.DB
	maxRows int
}

// Open connects to the configured database (sqlite or postgres) and returns
// an executor.
func Open(logger *observability.Logger, cfg config.DatabaseConfig) (*Executor, error) {
	driver := cfg.Driver
	dsn := cfg.SQLite.Path
	if driver == "postgres" {
		dsn = cfg.Postgres.DSN
	} else {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite3" {
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
	} else {
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
	}

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	logger.Info().Str("driver", driver).Int("max_rows", maxRows).Msg("Database opened")
	return &Executor{logger: logger, db: db, maxRows: maxRows}, nil
}

// NewExecutor wraps an existing connection. Used in tests.
func NewExecutor(logger *observability.Logger, db *sql.DB, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &Executor{logger: logger, db: db, maxRows: maxRows}
}

// Execute validates and runs a statement, returning rows in column-keyed
// form. A missing LIMIT clause is capped at the configured maximum;
// statements that already carry a LIMIT are left untouched.
func (e *Executor) Execute(ctx context.Context, query string) ([]Row, error) {
	if err := Validate(query); err != nil {
		return nil, err
	}

	final := query
	if !strings.Contains(strings.ToUpper(query), "LIMIT") {
		trimmed := strings.TrimRight(strings.TrimSpace(query), "; \t\n")
		final = fmt.Sprintf("%s LIMIT %d", trimmed, e.maxRows)
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, final)
	if err != nil {
		return nil, NewExecutionError("query execution failed", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, NewExecutionError("read result columns", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, NewExecutionError("scan result row", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeScalar(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, NewExecutionError("iterate result rows", err)
	}

	e.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("rows", len(result)).
		Msg("Query executed")

	return result, nil
}

// Schema returns table names and their column names.
func (e *Executor) Schema(ctx context.Context) (map[string][]string, error) {
	tables, err := e.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	schema := make(map[string][]string, len(tables))
	for _, table := range tables {
		cols, err := e.tableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		schema[table] = cols
	}
	return schema, nil
}

func (e *Executor) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, NewExecutionError("list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, NewExecutionError("scan table name", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (e *Executor) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info(%q)", table))
	if err != nil {
		return nil, NewExecutionError("read table info", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, NewExecutionError("scan column name", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Ping reports whether the connection is usable.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (e *Executor) Close() error {
	return e.db.Close()
}

// normalizeScalar converts driver values into the row scalar set.
func normalizeScalar(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
