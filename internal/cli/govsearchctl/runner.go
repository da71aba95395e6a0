// Package govsearchctl is the command line client for the GovSearch API.
package govsearchctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	TenantID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type command struct {
	method  string
	path    string
	body    []byte
	raw     bool
	summary func(io.Writer, []byte) bool
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("govsearchctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "GovSearch API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	tenantID := fs.String("tenant-id", defaults.TenantID, "Tenant ID header (used when auth is disabled)")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	format := fs.String("format", "csv", "export format: csv|parquet")
	out := fs.String("out", "", "export destination file; defaults to stdout")
	jsonOutput := fs.Bool("json", false, "print raw JSON responses")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	cmd, err := buildCommand(fs.Args(), *format)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n\n", err)
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	endpoint := strings.TrimRight(*baseURL, "/") + cmd.path
	code, responseBody, err := doRequest(ctx, client, cmd.method, endpoint, cmd.body, *apiKey, *tenantID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if cmd.raw {
		return writeExport(stdout, stderr, *out, responseBody)
	}
	if !*jsonOutput && cmd.summary != nil && cmd.summary(stdout, responseBody) {
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildCommand(args []string, format string) (command, error) {
	name := strings.TrimSpace(args[0])
	rest := args[1:]
	sessionPath := func() (string, error) {
		if len(rest) < 1 || strings.TrimSpace(rest[0]) == "" {
			return "", fmt.Errorf("%s requires a session id", name)
		}
		return "/v1/sessions/" + url.PathEscape(strings.TrimSpace(rest[0])), nil
	}

	switch name {
	case "health":
		return command{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return command{method: http.MethodGet, path: "/v1/ready"}, nil
	case "schema":
		return command{method: http.MethodGet, path: "/v1/schema"}, nil
	case "session-new":
		return command{method: http.MethodPost, path: "/v1/sessions", summary: printSessionID}, nil
	case "session-show":
		path, err := sessionPath()
		return command{method: http.MethodGet, path: path}, err
	case "session-delete":
		path, err := sessionPath()
		return command{method: http.MethodDelete, path: path}, err
	case "ask":
		path, err := sessionPath()
		if err != nil {
			return command{}, err
		}
		question := strings.TrimSpace(strings.Join(rest[1:], " "))
		if question == "" {
			return command{}, fmt.Errorf("ask requires a question")
		}
		body, err := json.Marshal(map[string]string{"question": question})
		if err != nil {
			return command{}, err
		}
		return command{method: http.MethodPost, path: path + "/ask", body: body, summary: printReply}, nil
	case "export":
		path, err := sessionPath()
		if err != nil {
			return command{}, err
		}
		return command{method: http.MethodGet, path: path + "/export?format=" + url.QueryEscape(format), raw: true}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", name)
	}
}

func doRequest(ctx context.Context, client *http.Client, method, endpoint string, body []byte, apiKey, tenantID string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}
	if strings.TrimSpace(tenantID) != "" {
		req.Header.Set("X-Tenant-ID", strings.TrimSpace(tenantID))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func printSessionID(w io.Writer, raw []byte) bool {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		return false
	}
	_, _ = fmt.Fprintln(w, payload.SessionID)
	return true
}

func printReply(w io.Writer, raw []byte) bool {
	var payload struct {
		Answer     string `json:"answer"`
		SQL        string `json:"sql"`
		Preview    string `json:"preview"`
		FollowUp   bool   `json:"follow_up"`
		Exportable bool   `json:"exportable"`
		Export     *struct {
			URL string `json:"url"`
		} `json:"export"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Answer == "" {
		return false
	}
	_, _ = fmt.Fprintln(w, payload.Answer)
	_, _ = fmt.Fprintln(w)
	if payload.FollowUp {
		_, _ = fmt.Fprintln(w, "(follow-up)")
	}
	_, _ = fmt.Fprintf(w, "SQL: %s\n\n", payload.SQL)
	_, _ = fmt.Fprintln(w, payload.Preview)
	switch {
	case payload.Export != nil && payload.Export.URL != "":
		_, _ = fmt.Fprintf(w, "\nDownload: %s\n", payload.Export.URL)
	case payload.Exportable:
		_, _ = fmt.Fprintln(w, "\nUse the export command to download all rows.")
	}
	return true
}

func writeExport(stdout, stderr io.Writer, path string, body []byte) int {
	if path == "" {
		_, _ = stdout.Write(body)
		return 0
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		_, _ = fmt.Fprintf(stderr, "write export: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(body), path)
	return 0
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: govsearchctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                  GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                   GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema                  GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  session-new             POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  session-show <id>       GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  session-delete <id>     DELETE /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  ask <id> <question>     POST /v1/sessions/{id}/ask")
	_, _ = fmt.Fprintln(w, "  export <id>             GET /v1/sessions/{id}/export")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
