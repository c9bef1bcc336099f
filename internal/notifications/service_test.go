package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelmeta/internal/config"
	"reelmeta/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "enrichment started",
			event: notifications.EventEnrichmentStarted,
			payload: notifications.Payload{
				"pending": 86537,
				"resumed": int64(1200),
			},
			expectTitle:   "reelmeta - Enrichment Started",
			expectMessage: "🎬 Enriching 86,537 movies (1,200 already checkpointed)",
			expectTags:    "reelmeta,enrich,started",
		},
		{
			name:  "enrichment completed",
			event: notifications.EventEnrichmentCompleted,
			payload: notifications.Payload{
				"total":    87585,
				"duration": 95 * time.Minute,
				"coverage": "synopsis 98.1%",
				"failed":   3,
			},
			expectTitle:   "reelmeta - Enrichment Complete",
			expectMessage: "✅ Enriched 87,585 movies in 1h35m0s\nsynopsis 98.1%\n3 fetches failed (rerun with --retry-failed)",
			expectTags:    "reelmeta,enrich,completed",
		},
		{
			name:  "semantic built",
			event: notifications.EventSemanticBuilt,
			payload: notifications.Payload{
				"records":  10,
				"embedder": "hashing",
				"file":     "out.jsonl.zst",
			},
			expectTitle:   "reelmeta - Semantic Artifact Built",
			expectMessage: "🧠 Embedded 10 movies with hashing\nFile: out.jsonl.zst",
			expectTags:    "reelmeta,semantic,completed",
		},
		{
			name:  "error",
			event: notifications.EventEnrichmentFailed,
			payload: notifications.Payload{
				"context": "enrichment",
				"error":   errors.New("checkpoint locked"),
			},
			expectTitle:    "reelmeta - Error",
			expectMessage:  "❌ Error with enrichment: checkpoint locked",
			expectTags:     "reelmeta,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "reelmeta - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "reelmeta,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Enrichment = false
	cfg.Notifications.Semantic = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventEnrichmentStarted,
		notifications.EventEnrichmentCompleted,
		notifications.EventSemanticBuilt,
		notifications.EventError,
		notifications.Event("unknown"),
	}
	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("topic reserved"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
