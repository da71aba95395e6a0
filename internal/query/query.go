package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotReadOnly is returned for statements other than SELECT or WITH queries.
var ErrNotReadOnly = errors.New("only read-only SELECT queries are allowed")

// ErrRestricted is returned for queries that reach service tables or
// functions able to run dynamic SQL or read server files.
var ErrRestricted = errors.New("query references a restricted object")

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns []string
	Rows    [][]any
	// Truncated is set when the query produced more than RowLimit rows and
	// Rows holds only the first RowLimit of them.
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

var (
	leadingComment = regexp.MustCompile(`^(?:\s*(?:--[^\n]*\n|/\*(?s:.*?)\*/))*\s*`)
	readOnlyStart  = regexp.MustCompile(`(?i)^(?:select|with)\b`)
	restrictedRel  = regexp.MustCompile(`(?i)\b(?:govsearch_\w*|pg_stat_activity|pg_stat_statements\w*)`)
	restrictedFunc = regexp.MustCompile(`(?i)\b(?:query_to_xml\w*|cursor_to_xml\w*|table_to_xml\w*|schema_to_xml\w*|database_to_xml\w*|dblink\w*|pg_read_\w+|pg_ls_\w+|lo_import|lo_export|lo_get|pg_stat_file)\s*\(`)
	writeKeyword   = regexp.MustCompile(`(?i)\b(?:insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|copy|attach|detach|vacuum|call)\b`)
)

// CheckReadOnly rejects anything that is not a single SELECT/WITH statement.
// Keywords inside string literals are not special-cased, so a literal such as
// 'DELETE' in a WHERE clause is rejected too.
func CheckReadOnly(sqlText string) error {
	body := StripTrailingSemicolons(leadingComment.ReplaceAllString(sqlText, ""))
	if body == "" {
		return fmt.Errorf("sql is required")
	}
	if strings.Contains(body, ";") {
		return fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !readOnlyStart.MatchString(body) {
		return ErrNotReadOnly
	}
	if keyword := writeKeyword.FindString(body); keyword != "" {
		return fmt.Errorf("%w: found %s", ErrNotReadOnly, strings.ToUpper(keyword))
	}
	return nil
}

// CheckRestricted rejects queries naming govsearch_* service tables, where
// session history is stored, views exposing other connections' SQL, and
// functions that execute SQL text or read server files. Matching is textual, so the same names inside string
// literals are rejected too.
func CheckRestricted(sqlText string) error {
	if name := restrictedRel.FindString(sqlText); name != "" {
		return fmt.Errorf("%w: %s", ErrRestricted, strings.ToLower(name))
	}
	if call := restrictedFunc.FindString(sqlText); call != "" {
		name := strings.TrimSpace(strings.TrimSuffix(call, "("))
		return fmt.Errorf("%w: %s", ErrRestricted, strings.ToLower(name))
	}
	return nil
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
