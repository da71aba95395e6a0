package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ExportFileName is the download name for a result export created at t.
func ExportFileName(t time.Time, format string) string {
	return fmt.Sprintf("query_results_%s.%s", t.UTC().Format("20060102_150405"), strings.ToLower(format))
}

// BuildExportKey places an export under its session:
// exports/<session>/query_results_<yyyymmdd_hhmmss>.<format>.
func BuildExportKey(sessionID string, t time.Time, format string) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(format, "export format"); err != nil {
		return "", err
	}
	return path.Join("exports", sessionID, ExportFileName(t, format)), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
