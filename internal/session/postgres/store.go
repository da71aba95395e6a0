package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/govsearch/govsearch/internal/session"
)

// Store persists sessions as JSONB documents in govsearch_session.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping session db: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	raw, err := session.Marshal(sess)
	if err != nil {
		return err
	}
	query := `
INSERT INTO govsearch_session (session_id, tenant_id, document, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.TenantID, raw, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
SELECT document
FROM govsearch_session
WHERE session_id = $1`
	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session.Unmarshal(raw)
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	raw, err := session.Marshal(sess)
	if err != nil {
		return err
	}
	query := `
UPDATE govsearch_session
SET document = $2, updated_at = $3
WHERE session_id = $1`
	result, err := s.db.ExecContext(ctx, query, sess.ID, raw, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return requireRow(result)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM govsearch_session WHERE session_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(result)
}

// ExpireSessions deletes sessions not updated since before and returns
// what was deleted so callers can clean up their exports.
func (s *Store) ExpireSessions(ctx context.Context, before time.Time) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM govsearch_session WHERE updated_at < $1 RETURNING document`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("expire sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var expired []*session.Session
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sess, err := session.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		expired = append(expired, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return expired, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}
