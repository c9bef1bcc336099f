package checkpoint_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/movielens"
	"reelmeta/internal/testsupport"
)

func TestPutAndGetRoundTripsDetails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	runtime := int64(81)
	details := &movielens.Details{
		Synopsis:  "Toys come alive.",
		Runtime:   &runtime,
		Cast:      []string{"Tom Hanks", "Tim Allen"},
		Directors: []string{"John Lasseter"},
	}
	if err := store.Put(ctx, checkpoint.Record{MovieID: 1, TMDbID: 862, Status: checkpoint.StatusEnriched, Details: details}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	rec, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Status != checkpoint.StatusEnriched || rec.TMDbID != 862 || rec.Attempts != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !reflect.DeepEqual(rec.Details, details) {
		t.Fatalf("details mismatch: %+v", rec.Details)
	}
	if rec.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}

	missing, err := store.Get(ctx, 999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil record for unknown movie, got %+v err=%v", missing, err)
	}
}

func TestPutIncrementsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.Put(ctx, checkpoint.Record{MovieID: 5, TMDbID: 50, Status: checkpoint.StatusFailed, ErrorMessage: "timeout"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, checkpoint.Record{MovieID: 5, TMDbID: 50, Status: checkpoint.StatusEnriched, Details: movielens.EmptyDetails()}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rec, err := store.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Attempts != 2 || rec.Status != checkpoint.StatusEnriched || rec.ErrorMessage != "" {
		t.Fatalf("unexpected record after retry: %+v", rec)
	}
}

func TestPutRequiresStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Put(context.Background(), checkpoint.Record{MovieID: 1}); err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestBatchCountsFailedAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	recs := []checkpoint.Record{
		{MovieID: 1, TMDbID: 862, Status: checkpoint.StatusEnriched, Details: &movielens.Details{Synopsis: "x"}},
		{MovieID: 2, TMDbID: 8844, Status: checkpoint.StatusNotFound, Details: movielens.EmptyDetails()},
		{MovieID: 3, TMDbID: 15602, Status: checkpoint.StatusFailed, ErrorMessage: "boom"},
		{MovieID: 4, Status: checkpoint.StatusSkipped},
		{MovieID: 7, TMDbID: 11, Status: checkpoint.StatusFailed, ErrorMessage: "boom"},
	}
	if err := store.PutBatch(ctx, recs); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Total() != 5 || counts[checkpoint.StatusFailed] != 2 || counts[checkpoint.StatusSkipped] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	failed, err := store.FailedIDs(ctx)
	if err != nil {
		t.Fatalf("FailedIDs failed: %v", err)
	}
	if !reflect.DeepEqual(failed, []int64{3, 7}) {
		t.Fatalf("unexpected failed ids: %v", failed)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 5 || all[2].Details == nil || all[4].Details != nil {
		t.Fatalf("unexpected records: %+v", all)
	}

	if err := store.SetMeta(ctx, "run_id", "abc"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 5 {
		t.Fatalf("expected 5 removed, got %d", removed)
	}
	if value, _ := store.Meta(ctx, "run_id"); value != "" {
		t.Fatalf("expected metadata cleared, got %q", value)
	}
}

func TestStatusDone(t *testing.T) {
	if !checkpoint.StatusFailed.Done(false) || checkpoint.StatusFailed.Done(true) {
		t.Fatal("failed status should only be pending when retrying")
	}
	if !checkpoint.StatusNotFound.Done(true) || !checkpoint.StatusEnriched.Done(true) {
		t.Fatal("terminal statuses should stay done")
	}
}

func TestReopenPersistsAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.db")
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
	if err := store.Put(context.Background(), checkpoint.Record{MovieID: 9, Status: checkpoint.StatusSkipped}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.Close()

	reopened, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	counts, err := reopened.Counts(context.Background())
	if err != nil || counts.Total() != 1 {
		t.Fatalf("expected persisted record, got %v err=%v", counts, err)
	}
	reopened.Close()

	if !checkpoint.Exists(path) {
		t.Fatal("expected checkpoint to exist")
	}
	if err := checkpoint.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if checkpoint.Exists(path) {
		t.Fatal("expected checkpoint to be removed")
	}
	if err := checkpoint.Remove(path); err != nil {
		t.Fatalf("Remove of missing checkpoint should succeed: %v", err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	db.Close()

	if _, err := checkpoint.Open(path); !errors.Is(err, checkpoint.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
