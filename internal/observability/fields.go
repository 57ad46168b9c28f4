package observability

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// TaskFields returns the fields attached to every log line about a task.
// The candidate profile is never logged.
func TaskFields(task schemas.FillTask) []zap.Field {
	fields := []zap.Field{
		zap.String("task_id", task.ID),
		zap.String("url", RedactURL(task.URL)),
	}
	if task.DetectionMethod != "" {
		fields = append(fields, zap.String("method", string(task.DetectionMethod)))
	}
	return fields
}

// RedactURL drops credentials, the query string and the fragment. Application
// links often carry tracking or session tokens there.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
