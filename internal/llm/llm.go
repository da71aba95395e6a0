// Package llm wraps the chat completion endpoint shared by SQL generation and
// answer generation.
package llm

import "context"

type Prompt struct {
	System string
	User   string
}

type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}
