package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/attendtrack/attendance-backend/pkg/config"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// Store is an S3-compatible bucket used for attendance photos.
type Store struct {
	client        *minio.Client
	bucket        string
	region        string
	presignExpiry time.Duration
	logger        *logger.Logger
}

// New creates a client for the configured endpoint. It does not touch the network.
func New(cfg *config.StorageConfig, log *logger.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		presignExpiry: expiry,
		logger:        log.WithComponent("storage"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info().Str("bucket", s.bucket).Msg("created bucket")
	return nil
}

// Put uploads an object. A size of -1 streams with multipart upload.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int64("size", info.Size).Msg("object uploaded")
	return nil
}

// PresignedURL returns a time-limited download URL for key.
func (s *Store) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignExpiry, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return u.String(), time.Now().Add(s.presignExpiry), nil
}

// Delete removes a single object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix and returns how many were deleted.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	toDelete := make(chan minio.ObjectInfo)
	listDone := make(chan struct{})
	var listErr error
	count := 0
	go func() {
		defer close(listDone)
		defer close(toDelete)
		for obj := range objects {
			if obj.Err != nil {
				listErr = obj.Err
				return
			}
			select {
			case toDelete <- obj:
				count++
			case <-ctx.Done():
				listErr = ctx.Err()
				return
			}
		}
	}()

	var firstErr error
	for rmErr := range s.client.RemoveObjects(ctx, s.bucket, toDelete, minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to delete %s: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	<-listDone
	if listErr != nil {
		return 0, fmt.Errorf("failed to list %s: %w", prefix, listErr)
	}
	if firstErr != nil {
		return 0, firstErr
	}
	return count, nil
}

// Health reports whether the bucket is reachable.
func (s *Store) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}
