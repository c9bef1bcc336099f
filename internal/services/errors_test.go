package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "tmdb", "movie details", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"tmdb", "movie details", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestFailureStatusMapping(t *testing.T) {
	notFound := services.Wrap(services.ErrNotFound, "tmdb", "movie details", "404", nil)
	if status := services.FailureStatus(notFound); status != checkpoint.StatusNotFound {
		t.Fatalf("expected not_found status, got %s", status)
	}
	transient := services.Wrap(services.ErrTransient, "tmdb", "movie details", "502", nil)
	if status := services.FailureStatus(transient); status != checkpoint.StatusFailed {
		t.Fatalf("expected failed status, got %s", status)
	}
	if status := services.FailureStatus(nil); status != checkpoint.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestIsRetriable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{services.Wrap(services.ErrRateLimited, "tmdb", "", "429", nil), true},
		{fmt.Errorf("dial: connection refused"), true},
		{services.Wrap(services.ErrNotFound, "tmdb", "", "404", nil), false},
		{errors.New("decode movie details: unexpected EOF"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetriable(tc.err); got != tc.want {
			t.Fatalf("IsRetriable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := time.Second
	if got := services.Backoff(0, base, max); got != base {
		t.Fatalf("attempt 0: got %v", got)
	}
	if got := services.Backoff(2, base, max); got != 400*time.Millisecond {
		t.Fatalf("attempt 2: got %v", got)
	}
	if got := services.Backoff(10, base, max); got != max {
		t.Fatalf("attempt 10: got %v", got)
	}
}

func TestSleepWithContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := services.SleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
