package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomkat-cr/abstractgo/internal/export"
)

// MinIOConfig locates the bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to object names, e.g. "reports/".
	Prefix string
}

// objectStore is the slice of *minio.Client used by MinIO.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIO uploads artifacts to an S3-compatible bucket.
type MinIO struct {
	client objectStore
	bucket string
	prefix string

	mu    sync.Mutex
	ready bool
}

// NewMinIO connects lazily: the bucket is checked on the first Put.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio sink: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return newMinIO(client, cfg.Bucket, cfg.Prefix), nil
}

func newMinIO(client objectStore, bucket, prefix string) *MinIO {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MinIO{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads the artifact, creating the bucket if it does not exist. The
// location is bucket/object.
func (m *MinIO) Put(ctx context.Context, art export.Artifact) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", err
	}

	object := m.prefix + art.Name
	_, err := m.client.PutObject(ctx, m.bucket, object, bytes.NewReader(art.Data), int64(len(art.Data)), minio.PutObjectOptions{
		ContentType:        art.MIMEType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", art.Name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact to MinIO: %w", err)
	}
	return m.bucket + "/" + object, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	m.ready = true
	return nil
}
