package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faultscope/internal/config"
)

const userAgent = "FaultScope/0.1.0"

// Event identifies one notification-worthy milestone.
type Event string

const (
	EventAnalysisCompleted Event = "analysis_completed"
	EventAnalysisFailed    Event = "analysis_failed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event-specific values used to format the message.
type Payload map[string]any

// Service defines the notification surface exposed to the orchestrator.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		analysisEvents: cfg.Notifications.Analysis,
		errorEvents:    cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	analysisEvents bool
	errorEvents    bool
}

// Publish formats and delivers one event. Events whose class is disabled
// in configuration are dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventAnalysisCompleted:
		if !n.analysisEvents {
			return nil
		}
		body := fmt.Sprintf("✅ Analysis complete: %s over %s sessions", payload.str("algorithm"), payload.str("sessions"))
		if best := payload.str("bestSensor"); best != "" {
			body = fmt.Sprintf("%s\nMost reliable sensor: %s", body, best)
		}
		return n.send(ctx, message{
			title: "FaultScope - Analysis Complete",
			body:  body,
			tags:  []string{"faultscope", "analysis", "completed"},
		})
	case EventAnalysisFailed:
		if !n.analysisEvents {
			return nil
		}
		return n.send(ctx, message{
			title:    "FaultScope - Analysis Failed",
			body:     fmt.Sprintf("❌ Analysis failed: %s", payload.str("error")),
			tags:     []string{"faultscope", "analysis", "failed"},
			priority: "high",
		})
	case EventError:
		if !n.errorEvents {
			return nil
		}
		body := "❌ Error"
		if context := payload.str("context"); context != "" {
			body += " with " + context
		}
		detail := payload.str("error")
		if detail == "" {
			detail = "unknown"
		}
		return n.send(ctx, message{
			title:    "FaultScope - Error",
			body:     body + ": " + detail,
			tags:     []string{"faultscope", "error", "alert"},
			priority: "high",
		})
	case EventTest:
		return n.send(ctx, message{
			title:    "FaultScope - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"faultscope", "test"},
			priority: "low",
		})
	}
	return nil
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
