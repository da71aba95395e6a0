package govsearchctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunAskCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey, gotTenant, gotQuestion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		gotTenant = r.Header.Get("X-Tenant-ID")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotQuestion = body["question"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"There are 2 contracts.","sql":"SELECT 1","preview":"Showing first 2 records:","follow_up":true,"exportable":false}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-api-key", "k1",
		"-tenant-id", "agency-a",
		"ask", "abc-123", "list", "those", "contracts",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/sessions/abc-123/ask" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" || gotTenant != "agency-a" {
		t.Fatalf("headers api_key=%q tenant=%q", gotAPIKey, gotTenant)
	}
	if gotQuestion != "list those contracts" {
		t.Fatalf("question = %q", gotQuestion)
	}
	output := stdout.String()
	if !strings.HasPrefix(output, "There are 2 contracts.") || !strings.Contains(output, "(follow-up)") || !strings.Contains(output, "SQL: SELECT 1") {
		t.Fatalf("stdout = %q", output)
	}
}

func TestRunSessionNewPrintsID(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"session_id":"s-1","tenant_id":"agency-a"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "session-new"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/sessions" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if stdout.String() != "s-1\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}

	stdout.Reset()
	code = Run(context.Background(), []string{"-base-url", srv.URL, "-json", "session-new"}, Options{Stdout: &stdout})
	if code != 0 || !strings.Contains(stdout.String(), `"tenant_id": "agency-a"`) {
		t.Fatalf("json output = %q code=%d", stdout.String(), code)
	}
}

func TestRunSessionShowAndDelete(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"session_id":"s-1"}`))
	}))
	defer srv.Close()

	for _, cmd := range []string{"session-show", "session-delete"} {
		if code := Run(context.Background(), []string{"-base-url", srv.URL, cmd, "s-1"}, Options{}); code != 0 {
			t.Fatalf("%s exit code = %d", cmd, code)
		}
	}
	if len(requests) != 2 || requests[0] != "GET /v1/sessions/s-1" || requests[1] != "DELETE /v1/sessions/s-1" {
		t.Fatalf("requests = %v", requests)
	}
}

func TestRunExportWritesFile(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "award_id\nA1\n")
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "results.csv")
	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-out", out, "export", "s-1"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if gotQuery != "format=csv" {
		t.Fatalf("query = %q", gotQuery)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "award_id\nA1\n" {
		t.Fatalf("file = %q", data)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"SESSION_NOT_FOUND"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "session-show", "missing"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "SESSION_NOT_FOUND") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunArgumentErrors(t *testing.T) {
	for _, args := range [][]string{
		{"unknown"},
		{"ask"},
		{"ask", "s-1"},
		{"session-show"},
		{},
	} {
		var stderr bytes.Buffer
		if code := Run(context.Background(), args, Options{Stderr: &stderr}); code != 2 {
			t.Fatalf("Run(%v) exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("Run(%v) expected usage output", args)
		}
	}
}
