// Package assistant runs one conversational turn: it resolves context,
// generates SQL, executes it, answers, and records what the turn learned.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/govsearch/govsearch/internal/answer"
	"github.com/govsearch/govsearch/internal/conversation"
	"github.com/govsearch/govsearch/internal/export"
	"github.com/govsearch/govsearch/internal/nl2sql"
	"github.com/govsearch/govsearch/internal/observability"
	"github.com/govsearch/govsearch/internal/query"
	"github.com/govsearch/govsearch/internal/schema"
	"github.com/govsearch/govsearch/internal/session"
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrGeneration    = errors.New("sql generation failed")
	ErrExecution     = errors.New("query execution failed")
	ErrAnswer        = errors.New("answer generation failed")
)

// DefaultRowLimit caps rows fetched per turn when RowLimit is unset.
const DefaultRowLimit = 10000

type Service struct {
	Sessions   *session.Manager
	Schema     schema.Provider
	Translator nl2sql.Translator
	Engine     query.Engine
	Answers    answer.Generator
	// Exporter is optional; without it turns never upload results.
	Exporter *export.Exporter
	RowLimit int
	Logger   *slog.Logger
	Clock    func() time.Time
}

type Reply struct {
	SessionID    string                 `json:"session_id"`
	Question     string                 `json:"question"`
	Answer       string                 `json:"answer"`
	SQL          string                 `json:"sql"`
	Provider     string                 `json:"provider,omitempty"`
	Model        string                 `json:"model,omitempty"`
	FollowUp     bool                   `json:"follow_up"`
	FilterClause string                 `json:"filter_clause,omitempty"`
	Columns      []string               `json:"columns"`
	Rows         [][]any                `json:"rows"`
	RowCount     int                    `json:"row_count"`
	Truncated    bool                   `json:"truncated,omitempty"`
	Preview      string                 `json:"preview"`
	Mentions     []conversation.Mention `json:"mentions,omitempty"`
	Exportable   bool                   `json:"exportable"`
	Export       *export.Artifact       `json:"export,omitempty"`
	DurationMS   int64                  `json:"duration_ms"`
}

// Ask runs one turn against the session. The session is saved only when
// the whole turn succeeds; any failure leaves history and context unchanged.
func (s *Service) Ask(ctx context.Context, tenantID, sessionID, question string) (Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Reply{}, ErrEmptyQuestion
	}

	var reply Reply
	start := s.now()
	_, err := s.Sessions.WithSession(ctx, tenantID, sessionID, func(sess *session.Session) error {
		var turnErr error
		reply, turnErr = s.runTurn(ctx, sess, question)
		return turnErr
	})
	if err != nil {
		observability.ObserveTurn(outcomeFor(err), reply.FollowUp)
		s.logger().WarnContext(ctx, "turn failed",
			slog.String("session_id", sessionID),
			slog.Bool("follow_up", reply.FollowUp),
			slog.Any("error", err),
		)
		return Reply{}, err
	}

	reply.DurationMS = s.now().Sub(start).Milliseconds()
	observability.ObserveTurn(observability.OutcomeOK, reply.FollowUp)
	s.logger().InfoContext(ctx, "turn completed",
		slog.String("session_id", sessionID),
		slog.Bool("follow_up", reply.FollowUp),
		slog.Int("row_count", reply.RowCount),
		slog.String("filter_clause", reply.FilterClause),
		slog.Int64("duration_ms", reply.DurationMS),
	)
	return reply, nil
}

func (s *Service) runTurn(ctx context.Context, sess *session.Session, question string) (Reply, error) {
	descriptor := s.Schema.Descriptor()
	bundle := conversation.BuildContext(question, sess.History, sess.Context)
	reply := Reply{
		SessionID: sess.ID,
		Question:  question,
		FollowUp:  bundle.FollowUp,
	}

	stageStart := s.now()
	generated, err := s.Translator.Translate(ctx, nl2sql.Request{
		Schema:   descriptor,
		Context:  bundle,
		Question: question,
	})
	observability.ObserveStage(observability.StageSQL, s.now().Sub(stageStart))
	if err != nil {
		return reply, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	reply.SQL = generated.SQL
	reply.Provider = generated.Provider
	reply.Model = generated.Model

	stageStart = s.now()
	result, err := s.Engine.Execute(ctx, query.Request{SQL: generated.SQL, RowLimit: s.rowLimit()})
	observability.ObserveStage(observability.StageExecute, s.now().Sub(stageStart))
	if err != nil {
		return reply, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	rowCount := len(result.Rows)
	observability.ObserveResultRows(rowCount)

	sess.Context.RecordExecution(generated.SQL, rowCount, executionExtra(generated))
	if result.Truncated {
		sess.Context.MarkTruncated()
	}

	stageStart = s.now()
	text, err := s.Answers.Generate(ctx, answer.Request{
		Question:        question,
		HistoryText:     bundle.RecentHistoryText,
		SQL:             generated.SQL,
		Columns:         result.Columns,
		Rows:            result.Rows,
		RowCount:        rowCount,
		Truncated:       result.Truncated,
		ExportThreshold: s.exportThreshold(),
	})
	observability.ObserveStage(observability.StageAnswer, s.now().Sub(stageStart))
	if err != nil {
		return reply, fmt.Errorf("%w: %w", ErrAnswer, err)
	}

	reply.Mentions = absorbMentions(sess.Context, text, generated.SQL, result.Truncated, rowCount)
	now := s.now()
	sess.AppendTurn(conversation.SpeakerUser, question, now)
	sess.AppendTurn(conversation.SpeakerAssistant, text, now)
	sess.LastResult = &session.ResultSet{
		SQL:       generated.SQL,
		Columns:   result.Columns,
		Rows:      result.Rows,
		RowCount:  rowCount,
		Truncated: result.Truncated,
		At:        now.UTC(),
	}

	reply.Answer = text
	reply.Columns = result.Columns
	reply.Rows = result.Rows
	reply.RowCount = rowCount
	reply.Truncated = result.Truncated
	reply.Preview = answer.Preview(result.Columns, result.Rows, answer.PreviewRows)
	reply.FilterClause, _ = sess.Context.FilterClause()
	reply.Exportable = rowCount > s.exportThreshold()
	if reply.Exportable && s.Exporter != nil {
		reply.Export = s.upload(ctx, sess, result)
	}
	return reply, nil
}

// upload stores a large result in object storage. Upload failures are
// logged and the turn still succeeds; the rows stay downloadable from the
// session's last result.
func (s *Service) upload(ctx context.Context, sess *session.Session, result query.Result) *export.Artifact {
	stageStart := s.now()
	artifact, err := s.Exporter.Upload(ctx, sess.ID, result.Columns, result.Rows)
	observability.ObserveStage(observability.StageExport, s.now().Sub(stageStart))
	if err != nil {
		s.logger().WarnContext(ctx, "export upload failed",
			slog.String("session_id", sess.ID),
			slog.Any("error", err),
		)
		return nil
	}
	observability.IncrementExports(string(artifact.Format))
	sess.Exports = append(sess.Exports, artifact.Key)
	return &artifact
}

// absorbMentions records the answer's entity mentions. A truncated result
// caps the row count, so counts at or above the cap are not recorded.
func absorbMentions(c *conversation.Context, text, sourceQuery string, truncated bool, rowCount int) []conversation.Mention {
	if !truncated {
		return c.AbsorbAnswer(text, sourceQuery)
	}
	kept := make([]conversation.Mention, 0)
	for _, mention := range conversation.ExtractMentions(text) {
		if mention.Count >= rowCount {
			continue
		}
		c.RecordEntityMention(mention.EntityType, mention.Count, sourceQuery)
		kept = append(kept, mention)
	}
	return kept
}

func executionExtra(generated nl2sql.Result) map[string]string {
	extra := map[string]string{}
	if generated.Provider != "" {
		extra["provider"] = generated.Provider
	}
	if generated.Model != "" {
		extra["model"] = generated.Model
	}
	return extra
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrGeneration):
		return observability.OutcomeGenerationError
	case errors.Is(err, ErrExecution):
		return observability.OutcomeExecutionError
	case errors.Is(err, ErrAnswer):
		return observability.OutcomeAnswerError
	default:
		return observability.OutcomeRejected
	}
}

func (s *Service) exportThreshold() int {
	if s.Exporter != nil {
		return s.Exporter.Threshold()
	}
	return export.DefaultThreshold
}

func (s *Service) rowLimit() int {
	if s.RowLimit <= 0 {
		return DefaultRowLimit
	}
	return s.RowLimit
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *Service) CreateSession(ctx context.Context, tenantID string) (*session.Session, error) {
	sess, err := s.Sessions.Create(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.logger().InfoContext(ctx, "session created", slog.String("session_id", sess.ID))
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, tenantID, sessionID string) (*session.Session, error) {
	return s.Sessions.Get(ctx, tenantID, sessionID)
}

// DeleteSession removes the session and any exports uploaded for it. Export
// cleanup failures are logged; the session is gone either way.
func (s *Service) DeleteSession(ctx context.Context, tenantID, sessionID string) error {
	deleted, err := s.Sessions.Delete(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if s.Exporter == nil || len(deleted.Exports) == 0 {
		return nil
	}
	if err := s.Exporter.Remove(ctx, deleted.Exports); err != nil {
		s.logger().WarnContext(ctx, "export cleanup failed",
			slog.String("session_id", sessionID),
			slog.Int("exports", len(deleted.Exports)),
			slog.Any("error", err),
		)
	}
	return nil
}
