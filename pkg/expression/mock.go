package expression

import (
	"strconv"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/robfig/cron/v3"
)

// MockOutput returns a representative output for a node that has not produced real data,
// shaped after its type. It lets editors preview expressions before a run.
func MockOutput(node *models.Node, now time.Time) map[string]any {
	param := func(key, fallback string) string {
		if v, ok := node.Parameters[key].(string); ok && v != "" {
			return v
		}

		return fallback
	}

	timestamp := now.Format(time.RFC3339)

	switch node.Type {
	case models.NodeTypeWebhook:
		return map[string]any{
			"method":  param("method", "POST"),
			"path":    param("path", "/webhook"),
			"headers": map[string]any{"content-type": "application/json"},
			"query":   map[string]any{},
			"body":    map[string]any{},
			"from":    "sender@example.com",
		}
	case models.NodeTypeHTTP:
		return map[string]any{
			"statusCode": 200,
			"headers":    map[string]any{"content-type": "application/json"},
			"body":       map[string]any{"success": true},
			"url":        param("url", "https://api.example.com"),
		}
	case models.NodeTypeCondition:
		return map[string]any{
			"result": true,
			"branch": "true",
		}
	case models.NodeTypeSchedule, models.NodeTypeCron:
		spec := param("cron", "* * * * *")
		out := map[string]any{
			"timestamp": timestamp,
			"cron":      spec,
		}

		if schedule, err := cron.ParseStandard(spec); err == nil {
			out["nextRun"] = schedule.Next(now).Format(time.RFC3339)
		}

		return out
	case models.NodeTypeManual:
		return map[string]any{
			"mode":        "manual",
			"triggeredAt": timestamp,
		}
	case models.NodeTypeEmail, models.NodeTypeGmail:
		return map[string]any{
			"messageId":  "mock-message-id",
			"from":       param("from", "sender@example.com"),
			"to":         param("to", "recipient@example.com"),
			"subject":    param("subject", "Sample subject"),
			"body":       "Sample email body",
			"receivedAt": timestamp,
		}
	case models.NodeTypeSlack:
		return map[string]any{
			"ok":      true,
			"channel": param("channel", "#general"),
			"ts":      strconv.FormatInt(now.Unix(), 10) + ".000100",
			"message": map[string]any{"text": param("text", "")},
		}
	case models.NodeTypeJira:
		return map[string]any{
			"id":   "10000",
			"key":  param("project", "PROJ") + "-1",
			"self": "https://example.atlassian.net/rest/api/2/issue/10000",
			"fields": map[string]any{
				"summary": param("summary", "Sample issue"),
				"status":  "To Do",
			},
		}
	default:
		return map[string]any{
			"success": true,
			"data":    map[string]any{},
		}
	}
}
