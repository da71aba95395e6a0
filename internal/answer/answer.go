// Package answer turns executed query results into a natural-language reply.
package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/govsearch/govsearch/internal/llm"
)

type Request struct {
	Question    string
	HistoryText string
	SQL         string
	Columns     []string
	Rows        [][]any
	RowCount    int
	// Truncated means RowCount stopped at the row limit.
	Truncated bool
	// ExportThreshold is the row count above which results are offered
	// for download. Zero means DefaultExportThreshold.
	ExportThreshold int
}

const DefaultExportThreshold = 20

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

const systemPrompt = "You are an expert data analyst providing clear answers based on database query results."

const guidelines = `Guidelines:
1. Answer directly using the data provided.
2. Detect if the user is asking for specific contract details (e.g., 'details of contract', 'list contracts', 'show contract info'). If so:
   - Show up to the first 5 records with these fields: recipient_name, recipient_uei, naics, naics_description, awarding_agency_name.
   - Format each record clearly (e.g., '1. Recipient: [name], UEI: [uei], NAICS: [naics] - [description], Agency: [agency]').
   - Mention the total count and note full results availability.
3. For no results, explain in business terms (e.g., 'No contracts match this criteria, possibly due to...').
4. Format numbers with commas and $ for currency.
5. Don't show SQL unless asked.
6. If query seems off, suggest corrections.
7. Confirm counts when listing previously mentioned entities.
8. If the record count is marked as a row limit, say the results were cut off and do not present it as the total.
`

type LLMGenerator struct {
	completer llm.Completer
}

func NewLLMGenerator(completer llm.Completer) (*LLMGenerator, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return &LLMGenerator{completer: completer}, nil
}

func (g *LLMGenerator) Generate(ctx context.Context, req Request) (string, error) {
	completion, err := g.completer.Complete(ctx, BuildPrompt(req))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(completion.Content)
	if text == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return text, nil
}

func BuildPrompt(req Request) llm.Prompt {
	user := fmt.Sprintf(`
USER QUESTION: "%s"
CONVERSATION HISTORY: %s
SQL QUERY EXECUTED: %s
QUERY RESULTS: %s
TOTAL RECORD COUNT: %s

%s9. End the answer with exactly this sentence: '%s'
`,
		req.Question,
		req.HistoryText,
		req.SQL,
		Preview(req.Columns, req.Rows, PreviewRows),
		recordCount(req),
		guidelines,
		ClosingNote(req.RowCount, exportThreshold(req)),
	)
	return llm.Prompt{System: systemPrompt, User: user}
}

func recordCount(req Request) string {
	if req.Truncated {
		return fmt.Sprintf("%d (row limit reached; more records exist)", req.RowCount)
	}
	return strconv.Itoa(req.RowCount)
}

func exportThreshold(req Request) int {
	if req.ExportThreshold <= 0 {
		return DefaultExportThreshold
	}
	return req.ExportThreshold
}

// ClosingNote is the sentence an answer should end with for rowCount records.
func ClosingNote(rowCount, exportThreshold int) string {
	switch {
	case rowCount <= 0:
		return "No results to display."
	case rowCount <= exportThreshold:
		return "Full results can be viewed in the table below."
	default:
		return "Full results can be viewed in the table below or downloaded as a CSV."
	}
}
