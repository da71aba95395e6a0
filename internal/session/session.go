// Package session owns conversation sessions: their history, query context
// and last result set, and the stores that persist them.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/govsearch/govsearch/internal/conversation"
)

var ErrNotFound = errors.New("session not found")

type ResultSet struct {
	SQL      string    `json:"sql"`
	Columns  []string  `json:"columns"`
	Rows     [][]any   `json:"rows"`
	RowCount int       `json:"row_count"`
	// Truncated is set when the query hit the row limit.
	Truncated bool      `json:"truncated,omitempty"`
	At        time.Time `json:"at"`
}

type Session struct {
	ID         string
	TenantID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	History    []conversation.Turn
	Context    *conversation.Context
	LastResult *ResultSet
	Exports    []string
}

func New(tenantID string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
		History:   []conversation.Turn{},
		Context:   conversation.NewContext(),
	}
}

func (s *Session) AppendTurn(speaker conversation.Speaker, text string, at time.Time) {
	s.History = append(s.History, conversation.Turn{Speaker: speaker, Text: text, At: at.UTC()})
}

type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

type document struct {
	ID         string                `json:"id"`
	TenantID   string                `json:"tenant_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	History    []conversation.Turn   `json:"history"`
	Context    conversation.Snapshot `json:"context"`
	LastResult *ResultSet            `json:"last_result,omitempty"`
	Exports    []string              `json:"exports,omitempty"`
}

// Marshal encodes a session as the JSON document stored by every backend.
func Marshal(s *Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("session is required")
	}
	ctx := s.Context
	if ctx == nil {
		ctx = conversation.NewContext()
	}
	raw, err := json.Marshal(document{
		ID:         s.ID,
		TenantID:   s.TenantID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		History:    s.History,
		Context:    ctx.Snapshot(),
		LastResult: s.LastResult,
		Exports:    s.Exports,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session %q: %w", s.ID, err)
	}
	return raw, nil
}

// Unmarshal decodes a stored session. Result values keep their JSON number
// text so integer columns are not widened to float64.
func Unmarshal(raw []byte) (*Session, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var doc document
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	history := doc.History
	if history == nil {
		history = []conversation.Turn{}
	}
	return &Session{
		ID:         doc.ID,
		TenantID:   doc.TenantID,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
		History:    history,
		Context:    conversation.RestoreContext(doc.Context),
		LastResult: doc.LastResult,
		Exports:    doc.Exports,
	}, nil
}
