package conversation

import (
	"regexp"
	"strings"
)

// The lazy body stops at the first ORDER BY, GROUP BY or LIMIT after WHERE,
// falling back to end of input.
var filterClausePattern = regexp.MustCompile(`(?is)WHERE\s+(.*?)(?:ORDER BY|GROUP BY|LIMIT|$)`)

// ExtractFilterClause returns the trimmed WHERE body of query. It is a literal
// text cut and does not parse SQL, so a WHERE inside a subquery or string
// literal is taken as-is.
func ExtractFilterClause(query string) (string, bool) {
	match := filterClausePattern.FindStringSubmatch(query)
	if match == nil {
		return "", false
	}
	clause := strings.TrimSpace(match[1])
	if clause == "" {
		return "", false
	}
	return clause, true
}
