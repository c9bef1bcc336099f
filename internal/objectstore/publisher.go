package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"reelmeta/internal/config"
	"reelmeta/internal/fileutil"
	"reelmeta/internal/logging"
	"reelmeta/internal/services"
)

// ErrDisabled is returned by New when publication is not configured.
var ErrDisabled = errors.New("object storage disabled")

// bucketClient is the subset of *minio.Client used for publication.
type bucketClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Object describes an uploaded file.
type Object struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	SHA256      string
	ContentType string
}

// URL returns the s3:// location of the object.
func (o Object) URL() string {
	return "s3://" + o.Bucket + "/" + o.Key
}

// Publisher uploads local files under a fixed bucket prefix.
type Publisher struct {
	client bucketClient
	bucket string
	prefix string
	logger *slog.Logger
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func withClient(client bucketClient) Option {
	return func(p *Publisher) { p.client = client }
}

// New constructs a Publisher from storage configuration.
func New(cfg config.Storage, opts ...Option) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "objectstore", "new",
			"storage.endpoint and storage.bucket are required", nil)
	}
	p := &Publisher{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "objectstore", "new", "create client", err)
		}
		p.client = client
	}
	p.logger = logging.NewComponentLogger(p.logger, "objectstore")
	return p, nil
}

// Key returns the object key used for name.
func (p *Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Upload stores localPath as objectName (relative to the configured prefix).
// An empty objectName uses the file's base name.
func (p *Publisher) Upload(ctx context.Context, localPath, objectName string) (Object, error) {
	if objectName == "" {
		objectName = filepath.Base(localPath)
	}
	sum, size, err := fileutil.SHA256File(localPath)
	if err != nil {
		return Object{}, services.Wrap(services.ErrValidation, "objectstore", "upload", "read "+localPath, err)
	}
	if err := p.CheckBucket(ctx); err != nil {
		return Object{}, err
	}

	obj := Object{
		Bucket:      p.bucket,
		Key:         p.Key(objectName),
		Size:        size,
		SHA256:      sum,
		ContentType: ContentType(localPath),
	}
	info, err := p.client.FPutObject(ctx, p.bucket, obj.Key, localPath, minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: map[string]string{"sha256": sum},
	})
	if err != nil {
		if ctx.Err() != nil {
			return Object{}, ctx.Err()
		}
		return Object{}, services.Wrap(services.ErrTransient, "objectstore", "upload", obj.URL(), err)
	}
	obj.ETag = info.ETag
	p.logger.Info("object uploaded",
		logging.String(logging.FieldEventType, "object_uploaded"),
		logging.String("object", obj.URL()),
		logging.Int64("size_bytes", size),
		logging.String("sha256", sum),
	)
	return obj, nil
}

// CheckBucket verifies the configured bucket exists and is reachable.
func (p *Publisher) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return services.Wrap(services.ErrTransient, "objectstore", "check bucket", p.bucket, err)
	}
	if !exists {
		return services.Wrap(services.ErrConfiguration, "objectstore", "check bucket",
			fmt.Sprintf("bucket %q does not exist", p.bucket), nil)
	}
	return nil
}

// UploadAll uploads each path under its base name, stopping at the first error.
func (p *Publisher) UploadAll(ctx context.Context, paths []string) ([]Object, error) {
	objects := make([]Object, 0, len(paths))
	for _, local := range paths {
		obj, err := p.Upload(ctx, local, "")
		if err != nil {
			return objects, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// ContentType picks the content type for a produced file.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".zst":
		return "application/zstd"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
