package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures a MinioStore.
type MinioConfig struct {
	// Endpoint is the MinIO/S3 endpoint host:port (required).
	Endpoint string

	// AccessKey and SecretKey are static v4 credentials (required).
	AccessKey string
	SecretKey string

	// UseSSL selects https vs http for the endpoint. Defaults to false
	// (plain http).
	UseSSL bool

	// PresignExpiry is how long PresignedGetURL links remain valid.
	// Defaults to 15 minutes.
	PresignExpiry time.Duration
}

// MinioStore is the reference blobstore.Store backend, storing content
// as objects addressed by "s3://<bucket>/<key>" storage URLs.
type MinioStore struct {
	client *minio.Client
	expiry time.Duration
}

// NewMinioStore dials a MinIO/S3-compatible endpoint.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect to %s: %w", cfg.Endpoint, err)
	}
	return &MinioStore{client: client, expiry: cfg.PresignExpiry}, nil
}

// Descriptor implements Store.
func (m *MinioStore) Descriptor(ctx context.Context, storageURL string) (Descriptor, error) {
	bucket, key, err := parseS3URL(storageURL)
	if err != nil {
		return Descriptor{}, err
	}
	info, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return Descriptor{}, ErrNotFound
		}
		return Descriptor{}, fmt.Errorf("blobstore: stat %s: %w", storageURL, err)
	}
	return Descriptor{
		URL:    storageURL,
		Size:   info.Size,
		SHA256: info.ETag,
		MIME:   info.ContentType,
	}, nil
}

// PresignedGetURL implements Store.
func (m *MinioStore) PresignedGetURL(ctx context.Context, storageURL string) (string, error) {
	bucket, key, err := parseS3URL(storageURL)
	if err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, bucket, key, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("blobstore: presign %s: %w", storageURL, err)
	}
	return u.String(), nil
}

// EnsureBucket creates bucket if it does not already exist, mirroring
// the executor-side idempotent bucket bootstrap.
func (m *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("blobstore: check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blobstore: create bucket %s: %w", bucket, err)
	}
	return nil
}

// parseS3URL splits a "s3://bucket/key" storage URL into its parts.
func parseS3URL(storageURL string) (bucket, key string, err error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return "", "", fmt.Errorf("blobstore: invalid storage url %q: %w", storageURL, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("blobstore: unsupported scheme %q in %q", u.Scheme, storageURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("blobstore: storage url %q missing bucket or key", storageURL)
	}
	return u.Host, key, nil
}
