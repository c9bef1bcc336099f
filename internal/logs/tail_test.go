package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"reelmeta/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reelmeta.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(path, 2)
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", result.Offset)
	}
}

func TestTailFewerLinesThanLimit(t *testing.T) {
	path := writeLog(t, "only\n")
	result, err := logs.Tail(path, 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"only"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil {
		t.Fatalf("expected no error for missing log, got %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestReadFromLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo")

	result, err := logs.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"one"}) || result.Offset != 4 {
		t.Fatalf("unexpected result: %#v", result)
	}

	appendLog(t, path, "\nthree\n")
	result, err = logs.ReadFrom(path, result.Offset)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"two", "three"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "fresh\n")
	result, err := logs.ReadFrom(path, 1000)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"fresh"}) {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
}

func TestFollowDeliversAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	initial, err := logs.Tail(path, 1)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, initial.Offset, 20*time.Millisecond, func(lines []string) error {
			mu.Lock()
			got = append(got, lines...)
			mu.Unlock()
			cancel()
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(got, []string{"later"}) {
		t.Fatalf("unexpected follow lines: %#v", got)
	}
}
