package nl2sql

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/govsearch/govsearch/internal/llm"
)

const systemPrompt = "You are an expert SQL analyst working with PostgreSQL."

type LLMTranslator struct {
	completer llm.Completer
	provider  string
}

func NewLLMTranslator(completer llm.Completer, provider string) (*LLMTranslator, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if strings.TrimSpace(provider) == "" {
		provider = llm.ProviderOpenAI
	}
	return &LLMTranslator{completer: completer, provider: provider}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Result{}, err
	}
	completion, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	sql := stripMarkdownSQL(completion.Content)
	if sql == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: t.provider,
		Model:    completion.Model,
	}, nil
}

// BuildPrompt renders the SQL generation prompt. Empty bundle fields render
// as empty sections.
func BuildPrompt(req Request) (llm.Prompt, error) {
	columnsJSON, err := req.Schema.ColumnsJSON()
	if err != nil {
		return llm.Prompt{}, err
	}
	samplesJSON, err := req.Schema.SamplesJSON()
	if err != nil {
		return llm.Prompt{}, err
	}
	user := fmt.Sprintf(`
TABLE NAME: %s
TABLE SCHEMA: %s
SAMPLE DATA: %s
CONVERSATION HISTORY: %s
PREVIOUSLY MENTIONED ENTITIES: %s
%s
%s
User Query: "%s"

Generate ONLY the raw SQL query (no explanations or code blocks). Use ILIKE for text filters, include aggregation functions for counts/sums, and maintain previous context where applicable.
When using STRING_AGG, cast non-text columns (e.g., integers) to TEXT using ::TEXT to avoid type errors.
`,
		req.Schema.Table,
		columnsJSON,
		samplesJSON,
		req.Context.RecentHistoryText,
		req.Context.EntityContext,
		req.Context.PriorQueryContext,
		req.Context.FollowUpDirective,
		req.Question,
	)
	return llm.Prompt{System: systemPrompt, User: user}, nil
}

// An opening fence carries an optional language tag up to the end of its
// line; any other ``` is a bare marker.
var codeFence = regexp.MustCompile("```[A-Za-z0-9_+-]*[ \t]*\r?\n|```")

// stripMarkdownSQL removes every code fence marker, not only a leading one;
// models sometimes wrap a query in prose plus fences.
func stripMarkdownSQL(value string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(value, ""))
}
