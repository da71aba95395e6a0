package nl2sql

import (
	"context"

	"github.com/govsearch/govsearch/internal/conversation"
	"github.com/govsearch/govsearch/internal/schema"
)

type Request struct {
	Schema   schema.Descriptor   `json:"schema"`
	Context  conversation.Bundle `json:"context"`
	Question string              `json:"question"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
