// Package export writes query results as CSV or Parquet files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/govsearch/govsearch/internal/answer"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

func Encode(w io.Writer, format Format, columns []string, rows [][]any) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, columns, rows)
	case FormatParquet:
		return WriteParquet(w, columns, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes a header row followed by every result row. NULL becomes
// an empty field.
func WriteCSV(w io.Writer, columns []string, rows [][]any) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = answer.FormatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteParquet stores every column as an optional UTF-8 string. Parquet
// orders group fields by name, so duplicate result columns get a numeric
// suffix.
func WriteParquet(w io.Writer, columns []string, rows [][]any) error {
	names := uniqueColumnNames(columns)
	group := parquet.Group{}
	for _, name := range names {
		group[name] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("query_results", group)

	// Map each result column to its leaf index in the schema.
	leafIndex := make(map[string]int, len(names))
	for i, field := range schema.Fields() {
		leafIndex[field.Name()] = i
	}
	positions := make([]int, len(names))
	for i, name := range names {
		positions[i] = leafIndex[name]
	}

	writer := parquet.NewWriter(w, schema)
	batch := make([]parquet.Row, 0, len(rows))
	for _, row := range rows {
		out := make(parquet.Row, len(names))
		for i := range names {
			leaf := positions[i]
			if i >= len(row) || row[i] == nil {
				out[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			out[leaf] = parquet.ByteArrayValue([]byte(answer.FormatValue(row[i]))).Level(0, 1, leaf)
		}
		batch = append(batch, out)
	}
	if _, err := writer.WriteRows(batch); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// uniqueColumnNames keeps the first occurrence of every result column name
// and renames later duplicates and blanks to the first name_N that neither
// the result nor an earlier rename uses.
func uniqueColumnNames(columns []string) []string {
	literal := make(map[string]bool, len(columns))
	for _, column := range columns {
		if name := strings.TrimSpace(column); name != "" {
			literal[name] = true
		}
	}
	used := make(map[string]bool, len(columns))
	names := make([]string, len(columns))
	for i, column := range columns {
		name := strings.TrimSpace(column)
		switch {
		case name == "":
			name = freeName("column", i+1, literal, used)
		case used[name]:
			name = freeName(name, 2, literal, used)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func freeName(base string, n int, literal, used map[string]bool) string {
	for ; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !literal[candidate] && !used[candidate] {
			return candidate
		}
	}
}
