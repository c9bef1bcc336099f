package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelmeta/internal/movielens"
)

const recordColumns = "movie_id, tmdb_id, status, details_json, error_message, attempts, updated_at"

const upsertRecordSQL = `INSERT INTO enrichment_records (movie_id, tmdb_id, status, details_json, error_message, attempts, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(movie_id) DO UPDATE SET
    tmdb_id = excluded.tmdb_id,
    status = excluded.status,
    details_json = excluded.details_json,
    error_message = excluded.error_message,
    attempts = enrichment_records.attempts + 1,
    updated_at = excluded.updated_at`

// Put inserts or replaces the record for rec.MovieID, incrementing its attempt counter.
func (s *Store) Put(ctx context.Context, rec Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	if err := s.execWithRetry(ctx, upsertRecordSQL, args...); err != nil {
		return fmt.Errorf("put movie %d: %w", rec.MovieID, err)
	}
	return nil
}

// PutBatch writes records in a single transaction.
func (s *Store) PutBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}
		defer stmt.Close()

		for _, rec := range recs {
			args, err := recordArgs(rec)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("put movie %d: %w", rec.MovieID, err)
			}
		}
		return tx.Commit()
	})
}

// Get returns the record for movieID, or nil when none exists.
func (s *Store) Get(ctx context.Context, movieID int64) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+recordColumns+" FROM enrichment_records WHERE movie_id = ?", movieID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", movieID, err)
	}
	return rec, nil
}

// All returns every record keyed by movie ID.
func (s *Store) All(ctx context.Context) (map[int64]Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT "+recordColumns+" FROM enrichment_records")
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[rec.MovieID] = *rec
	}
	return out, rows.Err()
}

// Counts returns the number of records per status.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(1) FROM enrichment_records GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("checkpoint counts: %w", err)
	}
	defer rows.Close()

	counts := make(Counts)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// FailedIDs returns movie IDs whose last attempt failed, ascending.
func (s *Store) FailedIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT movie_id FROM enrichment_records WHERE status = ? ORDER BY movie_id", StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes all records and run metadata.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM enrichment_records")
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		_, err = s.db.ExecContext(ctx, "DELETE FROM run_metadata")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear checkpoint: %w", err)
	}
	return removed, nil
}

// SetMeta stores a run metadata value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.execWithRetry(ctx,
		"INSERT INTO run_metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
}

// Meta returns a run metadata value, or "" when unset.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), "SELECT value FROM run_metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, nil
}

func recordArgs(rec Record) ([]any, error) {
	if rec.Status == "" {
		return nil, fmt.Errorf("movie %d: status is required", rec.MovieID)
	}
	var details any
	if rec.Details != nil {
		data, err := json.Marshal(rec.Details)
		if err != nil {
			return nil, fmt.Errorf("encode details for movie %d: %w", rec.MovieID, err)
		}
		details = string(data)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []any{
		rec.MovieID,
		nullableInt(rec.TMDbID),
		string(rec.Status),
		details,
		nullableString(rec.ErrorMessage),
		updated.UTC().Format(time.RFC3339Nano),
	}, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		movieID    int64
		tmdbID     sql.NullInt64
		status     string
		detailsRaw sql.NullString
		errorMsg   sql.NullString
		attempts   int
		updatedRaw string
	)
	if err := scanner.Scan(&movieID, &tmdbID, &status, &detailsRaw, &errorMsg, &attempts, &updatedRaw); err != nil {
		return nil, err
	}
	rec := &Record{
		MovieID:      movieID,
		TMDbID:       tmdbID.Int64,
		Status:       Status(status),
		ErrorMessage: errorMsg.String,
		Attempts:     attempts,
	}
	if detailsRaw.Valid && detailsRaw.String != "" {
		var details movielens.Details
		if err := json.Unmarshal([]byte(detailsRaw.String), &details); err != nil {
			return nil, fmt.Errorf("decode details for movie %d: %w", movieID, err)
		}
		rec.Details = &details
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
