// Package minio stores uploaded claim documents in S3-compatible object
// storage.  The database keeps only object keys; bytes live here.
package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/medishield/opdclaims/internal/config"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/pkg/errors"
)

// MinIOAPI abstracts the minio client operations the service uses, for
// testing.
type MinIOAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

// Client wraps the minio SDK with the service's bucket and expiry settings.
type Client struct {
	wrapped       MinIOAPI
	bucket        string
	presignExpiry time.Duration
	logger        logging.Logger
}

// NewClient connects to object storage, verifies reachability, and ensures
// the document bucket exists.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create object storage client")
	}

	c := &Client{
		wrapped:       api,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        log,
	}
	if c.presignExpiry == 0 {
		c.presignExpiry = time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to object storage")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("Object storage connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
	)
	return c, nil
}

// NewClientWithAPI wraps an existing API implementation (for tests).
func NewClientWithAPI(api MinIOAPI, bucket string, presignExpiry time.Duration, log logging.Logger) *Client {
	if presignExpiry == 0 {
		presignExpiry = time.Hour
	}
	return &Client{wrapped: api, bucket: bucket, presignExpiry: presignExpiry, logger: log}
}

func (c *Client) ensureBucket(ctx context.Context) error {
	exists, err := c.wrapped.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to check bucket existence")
	}
	if !exists {
		if err := c.wrapped.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to create bucket "+c.bucket)
		}
		c.logger.Info("Created bucket", logging.String("bucket", c.bucket))
	}
	return nil
}

// Bucket returns the configured document bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// API exposes the underlying storage API.
func (c *Client) API() MinIOAPI {
	return c.wrapped
}

// HealthCheck verifies the storage endpoint and the document bucket.
func (c *Client) HealthCheck(ctx context.Context) error {
	exists, err := c.wrapped.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "object storage health check failed")
	}
	if !exists {
		return errors.New(errors.ErrCodeStorageError, "document bucket missing: "+c.bucket)
	}
	return nil
}
