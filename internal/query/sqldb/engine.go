package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/govsearch/govsearch/internal/query"
)

type Engine struct {
	db               *sql.DB
	statementTimeout time.Duration
}

func NewEngine(db *sql.DB, statementTimeout time.Duration) *Engine {
	return &Engine{db: db, statementTimeout: statementTimeout}
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping query db: %w", err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, fmt.Errorf("database is required")
	}
	if err := query.CheckReadOnly(request.SQL); err != nil {
		return query.Result{}, err
	}
	if err := query.CheckRestricted(request.SQL); err != nil {
		return query.Result{}, err
	}
	sqlText := query.StripTrailingSemicolons(request.SQL)
	if request.RowLimit > 0 {
		// One extra row tells a full page apart from a cut-off result. The
		// newline keeps a trailing line comment from swallowing the paren.
		sqlText = fmt.Sprintf("SELECT * FROM (%s\n) AS q LIMIT %d", sqlText, request.RowLimit+1)
	}
	if e.statementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.statementTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	truncated := false
	if request.RowLimit > 0 && len(resultRows) > request.RowLimit {
		resultRows = resultRows[:request.RowLimit]
		truncated = true
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

type float64Valuer interface {
	Float64() float64
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case float64Valuer:
			// DuckDB decimals
			normalized[i] = typed.Float64()
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
