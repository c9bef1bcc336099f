package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"reelmeta/internal/config"
)

const userAgent = "reelmeta/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventEnrichmentStarted   Event = "enrichment_started"
	EventEnrichmentCompleted Event = "enrichment_completed"
	EventEnrichmentFailed    Event = "enrichment_failed"
	EventSemanticBuilt       Event = "semantic_built"
	EventPublished           Event = "published"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event fields. Recognised keys depend on the event.
type Payload map[string]any

// Service defines the notification surface used by commands and the pipeline.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventEnrichmentStarted, EventEnrichmentCompleted:
		return n.toggles.Enrichment
	case EventSemanticBuilt, EventPublished:
		return n.toggles.Semantic
	case EventEnrichmentFailed, EventError:
		return n.toggles.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEnrichmentStarted:
		return message{
			title: "reelmeta - Enrichment Started",
			body: fmt.Sprintf("🎬 Enriching %s movies (%s already checkpointed)",
				humanize.Comma(payload.count("pending")), humanize.Comma(payload.count("resumed"))),
			tags: []string{"reelmeta", "enrich", "started"},
		}, true
	case EventEnrichmentCompleted:
		body := fmt.Sprintf("✅ Enriched %s movies in %s",
			humanize.Comma(payload.count("total")), formatDuration(payload.elapsed("duration")))
		if summary := payload.text("coverage"); summary != "" {
			body += "\n" + summary
		}
		if failed := payload.count("failed"); failed > 0 {
			body += fmt.Sprintf("\n%s fetches failed (rerun with --retry-failed)", humanize.Comma(failed))
		}
		return message{
			title: "reelmeta - Enrichment Complete",
			body:  body,
			tags:  []string{"reelmeta", "enrich", "completed"},
		}, true
	case EventEnrichmentFailed, EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payload.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payload.text("error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "reelmeta - Error",
			body:     builder.String(),
			tags:     []string{"reelmeta", "error", "alert"},
			priority: "high",
		}, true
	case EventSemanticBuilt:
		return message{
			title: "reelmeta - Semantic Artifact Built",
			body: fmt.Sprintf("🧠 Embedded %s movies with %s\nFile: %s",
				humanize.Comma(payload.count("records")), payload.text("embedder"), payload.text("file")),
			tags: []string{"reelmeta", "semantic", "completed"},
		}, true
	case EventPublished:
		return message{
			title: "reelmeta - Published",
			body:  fmt.Sprintf("☁️ Uploaded %s (%s)", payload.text("object"), humanize.Bytes(uint64(max(payload.count("bytes"), 0)))),
			tags:  []string{"reelmeta", "storage", "uploaded"},
		}, true
	case EventTest:
		return message{
			title:    "reelmeta - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reelmeta", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) count(key string) int64 {
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (p Payload) elapsed(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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
