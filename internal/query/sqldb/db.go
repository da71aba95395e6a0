package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"
)

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// DatasetTable and DatasetFiles expose local parquet or CSV files as a
	// view when running on DuckDB.
	DatasetTable string
	DatasetFiles []string
}

func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverPostgres
	}
	switch driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database dsn is required")
		}
	case DriverDuckDB:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	if driver == DriverDuckDB && len(cfg.DatasetFiles) > 0 {
		if err := CreateDatasetView(ctx, db, cfg.DatasetTable, cfg.DatasetFiles); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// CreateDatasetView maps files onto a DuckDB view named table. All files must
// share one format, chosen by extension.
func CreateDatasetView(ctx context.Context, db *sql.DB, table string, files []string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("dataset table is required")
	}
	reader := "read_parquet"
	for _, file := range files {
		lower := strings.ToLower(file)
		switch {
		case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv.gz"):
			reader = "read_csv_auto"
		case strings.HasSuffix(lower, ".parquet"):
		default:
			return fmt.Errorf("unsupported dataset file %q", file)
		}
	}
	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM %s(%s)`, quoteIdent(table), reader, quoteStringArray(files))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		return fmt.Errorf("create view for table %q: %w", table, err)
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
