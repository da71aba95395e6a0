package maintenance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/govsearch/govsearch/internal/session"
)

type fakeExpirer struct {
	expired []*session.Session
	err     error
	cutoff  time.Time
}

func (f *fakeExpirer) ExpireSessions(_ context.Context, before time.Time) ([]*session.Session, error) {
	f.cutoff = before
	return f.expired, f.err
}

type fakeRemover struct {
	removed []string
	failFor string
}

func (f *fakeRemover) Remove(_ context.Context, keys []string) error {
	for _, key := range keys {
		if key == f.failFor {
			return errors.New("bucket unavailable")
		}
	}
	f.removed = append(f.removed, keys...)
	return nil
}

func sessionWithExports(keys ...string) *session.Session {
	s := session.New("tenant-a", time.Now())
	s.Exports = keys
	return s
}

func TestRunRetentionOnceRemovesExports(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{expired: []*session.Session{
		sessionWithExports("exports/a/one.csv", "exports/a/two.csv"),
		sessionWithExports(),
	}}
	remover := &fakeRemover{}
	svc := &Service{
		Sessions: expirer,
		Exports:  remover,
		Config:   Config{SessionTTL: 24 * time.Hour},
		Clock:    func() time.Time { return now },
	}

	before := testutil.ToFloat64(sessionsExpiredTotal)
	summary, err := svc.RunRetentionOnce(context.Background())
	if err != nil {
		t.Fatalf("RunRetentionOnce() error = %v", err)
	}
	if summary.SessionsExpired != 2 || summary.ExportsDeleted != 2 || summary.Failures != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if !expirer.cutoff.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("cutoff = %s", expirer.cutoff)
	}
	if len(remover.removed) != 2 {
		t.Fatalf("removed = %v", remover.removed)
	}
	if got := testutil.ToFloat64(sessionsExpiredTotal) - before; got != 2 {
		t.Fatalf("sessions expired delta = %v", got)
	}
}

func TestRunRetentionOnceReportsExportFailures(t *testing.T) {
	svc := &Service{
		Sessions: &fakeExpirer{expired: []*session.Session{
			sessionWithExports("exports/a/bad.csv"),
			sessionWithExports("exports/b/good.csv"),
		}},
		Exports: &fakeRemover{failFor: "exports/a/bad.csv"},
		Config:  Config{SessionTTL: time.Hour},
	}

	summary, err := svc.RunRetentionOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "1 failure") {
		t.Fatalf("RunRetentionOnce() error = %v", err)
	}
	if summary.Failures != 1 || summary.ExportsDeleted != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunRetentionOnceValidation(t *testing.T) {
	if _, err := (&Service{Config: Config{SessionTTL: time.Hour}}).RunRetentionOnce(context.Background()); err == nil {
		t.Fatal("expected error without expirer")
	}
	if _, err := (&Service{Sessions: &fakeExpirer{}}).RunRetentionOnce(context.Background()); err == nil {
		t.Fatal("expected error without ttl")
	}

	boom := errors.New("db down")
	_, err := (&Service{Sessions: &fakeExpirer{err: boom}, Config: Config{SessionTTL: time.Hour}}).RunRetentionOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("RunRetentionOnce() error = %v", err)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := &Service{Sessions: &fakeExpirer{}, Config: Config{SessionTTL: time.Hour}}
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
