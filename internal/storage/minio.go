package storage

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// listPageSize is the S3 protocol's maximum keys per list request.
const listPageSize = 1000

// prefixPager is the seam between the prefix-delete loop and the store:
// one paginated list call and one batched delete call.
type prefixPager interface {
	// listPage returns the first page of keys currently under prefix and
	// whether more pages remain.
	listPage(ctx context.Context, prefix string) (keys []string, truncated bool, err error)
	// removeKeys deletes the given keys in a single batched request.
	removeKeys(ctx context.Context, keys []string) error
}

// MinioStorage implements ObjectStorage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client *minio.Client
	core   *minio.Core
	bucket string
	pages  prefixPager
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists, and
// returns a ready-to-use MinioStorage.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStorage, error) {
	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := core.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := core.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Printf("storage: created bucket %q", bucket)
	}

	s := &MinioStorage{
		client: core.Client,
		core:   core,
		bucket: bucket,
	}
	s.pages = s
	return s, nil
}

// Upload streams reader to the store under key. size must be the exact byte
// count (pass -1 only if the size is genuinely unknown — the client will
// buffer it).
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Get confirms the object exists, then opens a read stream for it. A missing
// object yields ErrObjectNotFound; any other probe failure is a generic error.
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	return obj, nil
}

// Delete removes the object at key. S3 deletes are idempotent, so a missing
// key is not an error.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix. It repeatedly lists the
// first remaining page and batch-deletes it, until a listing comes back
// non-truncated. Each page is fully deleted before the next list call so the
// store's truncation flag is observed correctly.
func (s *MinioStorage) DeletePrefix(ctx context.Context, prefix string) error {
	for {
		keys, truncated, err := s.pages.listPage(ctx, prefix)
		if err != nil {
			return fmt.Errorf("list prefix %q: %w", prefix, err)
		}
		if len(keys) == 0 {
			return nil
		}

		if err := s.pages.removeKeys(ctx, keys); err != nil {
			return fmt.Errorf("delete prefix %q: %w", prefix, err)
		}

		if !truncated {
			return nil
		}
	}
}

func (s *MinioStorage) listPage(_ context.Context, prefix string) ([]string, bool, error) {
	res, err := s.core.ListObjectsV2(s.bucket, prefix, "", "", "", listPageSize)
	if err != nil {
		return nil, false, err
	}

	keys := make([]string, 0, len(res.Contents))
	for _, obj := range res.Contents {
		keys = append(keys, obj.Key)
	}
	return keys, res.IsTruncated, nil
}

func (s *MinioStorage) removeKeys(ctx context.Context, keys []string) error {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return fmt.Errorf("remove object %q: %w", rErr.ObjectName, rErr.Err)
		}
	}
	return nil
}
