package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"toolcatalog/internal/config"
	"toolcatalog/internal/domain"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectPrefix = "products/"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MinioImageStore keeps product images in an S3-compatible bucket
type MinioImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time
}

// NewMinioImageStore creates a store from cfg. No request is made until first use.
func NewMinioImageStore(cfg config.StorageConfig) (*MinioImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &MinioImageStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// EnsureBucket creates the bucket when missing and makes its objects publicly readable
func (s *MinioImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, s.bucket)
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}

	return nil
}

// Upload stores the image and returns its public URL
func (s *MinioImageStore) Upload(ctx context.Context, img domain.ImageUpload) (string, error) {
	objectName := s.objectName(img.Filename)

	size := img.Size
	if size <= 0 {
		size = -1
	}

	_, err := s.client.PutObject(ctx, s.bucket, objectName, img.Reader, size, minio.PutObjectOptions{
		ContentType: img.ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	return s.objectURL(objectName), nil
}

// Delete removes the object behind url. URLs this store did not issue are ignored.
func (s *MinioImageStore) Delete(ctx context.Context, url string) error {
	key, ok := s.objectKey(url)
	if !ok {
		return nil
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *MinioImageStore) objectName(filename string) string {
	base := unsafeFilenameChars.ReplaceAllString(path.Base(filename), "_")
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return fmt.Sprintf("%s%d-%s", objectPrefix, s.now().UnixNano(), base)
}

func (s *MinioImageStore) objectURL(objectName string) string {
	return s.publicURL + "/" + s.bucket + "/" + objectName
}

func (s *MinioImageStore) objectKey(url string) (string, bool) {
	prefix := s.publicURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}

	key := strings.TrimPrefix(url, prefix)
	if !strings.HasPrefix(key, objectPrefix) || key == objectPrefix {
		return "", false
	}
	return key, true
}
