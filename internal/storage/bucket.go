package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Bucket archives paid print files in S3-compatible object storage. The
// object key is always the order's filename.
type Bucket struct {
	client *minio.Client
	bucket string
	scheme string
}

func NewBucket(endpoint string, accessKey string, secretKey string, useSSL bool, bucket string) (*Bucket, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client %w", err)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &Bucket{
		client: client,
		bucket: bucket,
		scheme: scheme,
	}, nil
}

// UploadFile copies the local temp file into the bucket under key and
// returns the object's deterministic public URL.
func (b *Bucket) UploadFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	_, err := b.client.FPutObject(ctx, b.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s %w", key, err)
	}
	return fmt.Sprintf("%s://%s/%s/%s", b.scheme, b.client.EndpointURL().Host, b.bucket, key), nil
}

// SignedURL produces a time-limited read link for staff downloads.
func (b *Bucket) SignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, expires, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s %w", key, err)
	}
	return u.String(), nil
}
