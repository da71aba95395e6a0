// Package maintenance runs background retention for persisted sessions and
// the result exports they uploaded.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/govsearch/govsearch/internal/session"
)

// Expirer deletes sessions idle since before and returns them.
type Expirer interface {
	ExpireSessions(ctx context.Context, before time.Time) ([]*session.Session, error)
}

type ExportRemover interface {
	Remove(ctx context.Context, keys []string) error
}

type Config struct {
	RetentionInterval time.Duration
	SessionTTL        time.Duration
}

type Service struct {
	Sessions Expirer
	// Exports is optional; without it expired sessions' exports are kept.
	Exports ExportRemover
	Config  Config
	Logger  *slog.Logger
	Clock   func() time.Time
}

type RetentionSummary struct {
	SessionsExpired int `json:"sessions_expired"`
	ExportsDeleted  int `json:"exports_deleted"`
	Failures        int `json:"failures"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()
	if s.Config.SessionTTL <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.Config.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunRetentionOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "retention cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil && summary.SessionsExpired > 0 {
				s.Logger.InfoContext(ctx, "retention cycle completed", slog.Any("summary", summary))
			}
		}
	}
}

func (s *Service) RunRetentionOnce(ctx context.Context) (RetentionSummary, error) {
	s.ensureDefaults()
	if s.Sessions == nil {
		return RetentionSummary{}, fmt.Errorf("session expirer is required")
	}
	if s.Config.SessionTTL <= 0 {
		return RetentionSummary{}, fmt.Errorf("session ttl must be positive")
	}

	cutoff := s.Clock().Add(-s.Config.SessionTTL)
	expired, err := s.Sessions.ExpireSessions(ctx, cutoff)
	if err != nil {
		retentionRunsTotal.WithLabelValues("failed").Inc()
		return RetentionSummary{}, err
	}

	summary := RetentionSummary{SessionsExpired: len(expired)}
	sessionsExpiredTotal.Add(float64(len(expired)))
	failures := make([]string, 0)
	for _, sess := range expired {
		if s.Exports == nil || len(sess.Exports) == 0 {
			continue
		}
		if err := s.Exports.Remove(ctx, sess.Exports); err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("session %s exports: %v", sess.ID, err))
			continue
		}
		summary.ExportsDeleted += len(sess.Exports)
	}
	exportsDeletedTotal.Add(float64(summary.ExportsDeleted))

	if len(failures) > 0 {
		retentionRunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("retention encountered %d failure(s): %s", len(failures), strings.Join(failures, "; "))
	}
	retentionRunsTotal.WithLabelValues("completed").Inc()
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.RetentionInterval <= 0 {
		s.Config.RetentionInterval = max(s.Config.SessionTTL/4, time.Minute)
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}
