package objectstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"

	"reelmeta/internal/config"
	"reelmeta/internal/fileutil"
	"reelmeta/internal/services"
	"reelmeta/internal/testsupport"
)

type fakeBucket struct {
	exists    bool
	existsErr error
	putErr    error
	puts      []fakePut
}

type fakePut struct {
	bucket, key, file string
	opts              minio.PutObjectOptions
}

func (f *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeBucket) FPutObject(_ context.Context, bucket, key, file string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.puts = append(f.puts, fakePut{bucket: bucket, key: key, file: file, opts: opts})
	return minio.UploadInfo{Bucket: bucket, Key: key, ETag: "etag-1"}, nil
}

func storageConfig() config.Storage {
	return config.Storage{Enabled: true, Endpoint: "minio.local:9000", Bucket: "datasets", Prefix: "/movielens/"}
}

func TestNewDisabled(t *testing.T) {
	_, err := New(config.Storage{})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	cfg := storageConfig()
	cfg.Bucket = ""
	_, err := New(cfg)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadSetsMetadata(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "movies_enriched_big.csv")
	testsupport.WriteText(t, local, "movieId,title\n1,Toy Story (1995)\n")
	wantSum, wantSize, err := fileutil.SHA256File(local)
	if err != nil {
		t.Fatalf("sha256: %v", err)
	}

	fake := &fakeBucket{exists: true}
	pub, err := New(storageConfig(), withClient(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	obj, err := pub.Upload(context.Background(), local, "")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if obj.Key != "movielens/movies_enriched_big.csv" {
		t.Fatalf("unexpected key %q", obj.Key)
	}
	if obj.URL() != "s3://datasets/movielens/movies_enriched_big.csv" {
		t.Fatalf("unexpected url %q", obj.URL())
	}
	if obj.SHA256 != wantSum || obj.Size != wantSize || obj.ETag != "etag-1" {
		t.Fatalf("unexpected object %+v", obj)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected one put, got %d", len(fake.puts))
	}
	put := fake.puts[0]
	if put.opts.ContentType != "text/csv" {
		t.Fatalf("unexpected content type %q", put.opts.ContentType)
	}
	if put.opts.UserMetadata["sha256"] != wantSum {
		t.Fatalf("sha256 metadata missing: %+v", put.opts.UserMetadata)
	}
}

func TestUploadMissingBucket(t *testing.T) {
	local := filepath.Join(t.TempDir(), "stats.csv")
	testsupport.WriteText(t, local, "movieId\n")
	pub, err := New(storageConfig(), withClient(&fakeBucket{exists: false}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pub.Upload(context.Background(), local, "stats.csv"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCheckBucketTransientError(t *testing.T) {
	pub, err := New(storageConfig(), withClient(&fakeBucket{existsErr: errors.New("dial tcp: refused")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := pub.CheckBucket(context.Background()); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestUploadMissingFile(t *testing.T) {
	fake := &fakeBucket{exists: true}
	pub, err := New(storageConfig(), withClient(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pub.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fake.puts) != 0 {
		t.Fatal("nothing should be uploaded")
	}
}

func TestUploadAllStopsAtFirstError(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	testsupport.WriteText(t, a, "x\n")
	fake := &fakeBucket{exists: true}
	pub, err := New(storageConfig(), withClient(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	objects, err := pub.UploadAll(context.Background(), []string{a, filepath.Join(dir, "b.csv")})
	if err == nil {
		t.Fatal("expected error for missing second file")
	}
	if len(objects) != 1 || objects[0].Key != "movielens/a.csv" {
		t.Fatalf("unexpected objects %+v", objects)
	}
}

func TestUploadTransientPutError(t *testing.T) {
	local := filepath.Join(t.TempDir(), "artifact.jsonl.zst")
	testsupport.WriteText(t, local, "data")
	pub, err := New(storageConfig(), withClient(&fakeBucket{exists: true, putErr: errors.New("connection reset")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := pub.Upload(context.Background(), local, ""); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.csv":       "text/csv",
		"b.jsonl.zst": "application/zstd",
		"c.jsonl":     "application/x-ndjson",
		"d.db":        "application/vnd.sqlite3",
		"e.unknownx":  "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentType(name); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", name, got, want)
		}
	}
}
