package conversation

import (
	"fmt"
	"strings"
)

// HistoryWindow is the number of trailing turns rendered into a Bundle.
const HistoryWindow = 4

// Bundle is the context handed to SQL generation. Empty fields mean the
// corresponding context does not exist; they are never filled with
// placeholders, so "no prior query" stays distinct from "zero rows".
type Bundle struct {
	RecentHistoryText string `json:"recent_history_text"`
	EntityContext     string `json:"entity_context"`
	PriorQueryContext string `json:"prior_query_context"`
	FollowUpDirective string `json:"follow_up_directive"`
	FollowUp          bool   `json:"follow_up"`
	FilterClause      string `json:"filter_clause,omitempty"`
}

func BuildContext(question string, history []Turn, c *Context) Bundle {
	if c == nil {
		c = NewContext()
	}
	bundle := Bundle{
		RecentHistoryText: FormatTurns(RecentTurns(history, HistoryWindow)),
		EntityContext:     formatEntityContext(c.Mentions()),
		PriorQueryContext: formatPriorQuery(c),
		FollowUp:          IsFollowUp(question),
	}
	clause, ok := c.FilterClause()
	bundle.FilterClause = clause
	if ok && bundle.FollowUp {
		record, _ := c.LastExecution()
		expected := fmt.Sprintf("Ensure %d rows are returned.\n", record.RowCount)
		if record.Truncated {
			expected = fmt.Sprintf("Ensure at least %d rows are returned.\n", record.RowCount)
		}
		bundle.FollowUpDirective = "IMPORTANT: The user is asking to list entities from the previous query.\n" +
			"Reuse WHERE clause: " + clause + "\n" +
			expected
	}
	return bundle
}

func formatEntityContext(entries []RegistryEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "- You previously mentioned there are %d %ss.\n", entry.Count, entry.EntityType)
	}
	return b.String()
}

func formatPriorQuery(c *Context) string {
	record, ok := c.LastExecution()
	if !ok || record.Query == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Previous SQL query: %s\n", record.Query)
	if record.Truncated {
		fmt.Fprintf(&b, "Previous query result count: more than %d (row limit reached)\n", record.RowCount)
	} else {
		fmt.Fprintf(&b, "Previous query result count: %d\n", record.RowCount)
	}
	if record.FilterClause != "" {
		fmt.Fprintf(&b, "Previous WHERE clause: %s\n", record.FilterClause)
	}
	return b.String()
}
