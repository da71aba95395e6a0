package answer

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// PreviewRows is how many result rows the answer model sees.
const PreviewRows = 5

// Preview renders the first n rows as a plain text table.
func Preview(columns []string, rows [][]any, n int) string {
	if len(rows) == 0 {
		return "No results found."
	}
	if n > len(rows) {
		n = len(rows)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing first %d records:\n", n)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows[:n] {
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = FormatValue(value)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// FormatValue renders a driver value for display and export.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
