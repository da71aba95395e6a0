package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/govsearch/govsearch/internal/cli/govsearchctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("GOVSEARCH_CLI_TIMEOUT")), 2*time.Minute)
	options := govsearchctl.Options{
		BaseURL:  envOr("GOVSEARCH_API_URL", "http://localhost:8080"),
		APIKey:   strings.TrimSpace(os.Getenv("GOVSEARCH_API_KEY")),
		TenantID: strings.TrimSpace(os.Getenv("GOVSEARCH_TENANT_ID")),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := govsearchctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid GOVSEARCH_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
