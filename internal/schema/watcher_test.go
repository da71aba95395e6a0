package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	writeDescriptor(t, path, "first")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if got := w.Descriptor().Table; got != "first" {
		t.Fatalf("initial Table = %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeDescriptor(t, path, "second")
	waitForTable(t, w, "second")

	// An unparsable rewrite keeps the last good descriptor.
	if err := os.WriteFile(path, []byte("table: ["), 0o644); err != nil {
		t.Fatalf("write invalid descriptor: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := w.Descriptor().Table; got != "second" {
		t.Fatalf("Table after invalid write = %q, want second", got)
	}
}

func TestNewWatcherRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte("table: t\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher() expected error for descriptor without columns")
	}
}

func writeDescriptor(t *testing.T, path, table string) {
	t.Helper()
	raw := "table: " + table + "\ncolumns:\n  state: Recipient state\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func waitForTable(t *testing.T, w *Watcher, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Descriptor().Table == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Table = %q, want %q", w.Descriptor().Table, want)
}
