// Package minio adapts the MinIO Go SDK into HRAP's object-storage lookup
// port, grounded on the teacher's bucket/client setup
// (handler/system.go's ListMinioBuckets), narrowed from full bucket
// management to presign-by-key: episodes store bare object keys for
// audio_uri/image_uri, and the Gateway resolves them to a short-lived
// presigned URL rather than exposing the bucket publicly.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store presigns object keys in a single MinIO bucket.
type Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

// Config is the subset of MinIO connection settings HRAP needs.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	PresignTTL      time.Duration
}

// New connects to a MinIO (or S3-compatible) endpoint.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, bucket: cfg.Bucket, presignTTL: ttl}, nil
}

// PresignedURL returns a short-lived GET URL for objectKey. Episode rows
// store bare keys (not full URLs) in audio_uri/image_uri precisely so the
// Gateway can resolve them lazily at response time, keeping presign TTLs
// short without needing to rewrite stored metadata.
func (s *Store) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio: presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// Ping satisfies gateway.Pinger: a bucket existence check is cheap and
// exercises both connectivity and credentials.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: bucket check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("minio: bucket %q does not exist", s.bucket)
	}
	return nil
}
