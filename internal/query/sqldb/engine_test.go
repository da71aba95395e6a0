package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/govsearch/govsearch/internal/query"
)

func TestExecuteWrapsRowLimitAndNormalizesValues(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT recipient_name, total_obligation FROM tm_awards WHERE state_code ILIKE 'CA'\n) AS q LIMIT 501")).
		WillReturnRows(sqlmock.NewRows([]string{"recipient_name", "total_obligation"}).
			AddRow([]byte("ACME CORP"), 1250.5).
			AddRow("GLOBEX", nil))

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT recipient_name, total_obligation FROM tm_awards WHERE state_code ILIKE 'CA';",
		RowLimit: 500,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "recipient_name" {
		t.Fatalf("columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "ACME CORP" {
		t.Fatalf("bytes not normalized: %#v", result.Rows[0][0])
	}
	if result.Rows[1][1] != nil {
		t.Fatalf("NULL = %#v", result.Rows[1][1])
	}
	if result.Truncated {
		t.Fatal("result under the row limit marked truncated")
	}
	assertSQLMock(t, mock)
}

func TestExecuteWithoutRowLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM tm_awards$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT COUNT(*) FROM tm_awards"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != int64(42) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
	assertSQLMock(t, mock)
}

func TestExecuteMarksResultsOverRowLimitTruncated(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	rows := sqlmock.NewRows([]string{"piid"})
	for _, piid := range []string{"A1", "A2", "A3", "A4"} {
		rows.AddRow(piid)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT piid FROM tm_awards\n) AS q LIMIT 4")).
		WillReturnRows(rows)

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT piid FROM tm_awards", RowLimit: 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	if len(result.Rows) != 3 || result.Rows[2][0] != "A3" {
		t.Fatalf("rows = %#v", result.Rows)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsTrailingLineComment(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM (SELECT piid FROM tm_awards -- newest first\n) AS q LIMIT 11")).
		WillReturnRows(sqlmock.NewRows([]string{"piid"}).AddRow("A1"))

	if _, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT piid FROM tm_awards -- newest first",
		RowLimit: 10,
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRefusesSessionTables(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	for _, sqlText := range []string{
		"SELECT * FROM govsearch_session",
		"SELECT document FROM public.govsearch_session WHERE tenant_id <> 'me'",
		"SELECT query_to_xml('select * from govsearch' || '_session', true, false, '')",
	} {
		_, err := engine.Execute(context.Background(), query.Request{SQL: sqlText, RowLimit: 10})
		if !errors.Is(err, query.ErrRestricted) {
			t.Fatalf("Execute(%q) error = %v, want ErrRestricted", sqlText, err)
		}
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsWrites(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	_, err := engine.Execute(context.Background(), query.Request{SQL: "DELETE FROM tm_awards"})
	if !errors.Is(err, query.ErrNotReadOnly) {
		t.Fatalf("Execute() error = %v, want ErrNotReadOnly", err)
	}
	assertSQLMock(t, mock)
}

func TestExecutePropagatesQueryError(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	boom := errors.New(`column "bogus" does not exist`)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT bogus FROM tm_awards")).WillReturnError(boom)

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT bogus FROM tm_awards"})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRowError(t *testing.T) {
	db, mock := newSQLMock(t)
	engine := NewEngine(db, 0)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT piid FROM tm_awards")).
		WillReturnRows(sqlmock.NewRows([]string{"piid"}).AddRow("A1").AddRow("A2").RowError(1, boom))

	if _, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT piid FROM tm_awards"}); !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRequiresDB(t *testing.T) {
	if _, err := NewEngine(nil, 0).Execute(context.Background(), query.Request{SQL: "SELECT 1"}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestOpenValidation(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := Open(context.Background(), DBConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestHealthCheckPingsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	if err := NewEngine(db, 0).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
