package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/pkg/errors"
)

var ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")

// DocumentStore persists claim documents.  Object keys follow
// claims/{claimID}/{kind}/{filename} so one claim's documents share a prefix.
type DocumentStore interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Download(ctx context.Context, objectKey string) (*DownloadResult, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	Delete(ctx context.Context, objectKey string) error
	ListClaim(ctx context.Context, claimID string) ([]ObjectInfo, error)
	PresignedDownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type UploadRequest struct {
	ObjectKey   string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

type DownloadResult struct {
	Data         []byte
	ContentType  string
	Size         int64
	LastModified time.Time
}

type ObjectInfo struct {
	ObjectKey    string
	Size         int64
	LastModified time.Time
}

// ObjectKey builds the canonical key for a claim document.
func ObjectKey(claimID, kind, fileName string) string {
	return fmt.Sprintf("claims/%s/%s/%s", claimID, kind, fileName)
}

type documentStore struct {
	client *Client
	logger logging.Logger
}

// NewDocumentStore creates a DocumentStore over the given client.
func NewDocumentStore(client *Client, log logging.Logger) DocumentStore {
	return &documentStore{client: client, logger: log}
}

func (s *documentStore) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.ObjectKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "object key required")
	}
	if len(req.Data) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty document")
	}
	contentType := req.ContentType
	if contentType == "" {
		n := len(req.Data)
		if n > 512 {
			n = 512
		}
		contentType = http.DetectContentType(req.Data[:n])
	}

	info, err := s.client.API().PutObject(ctx, s.client.Bucket(), req.ObjectKey,
		bytes.NewReader(req.Data), int64(len(req.Data)),
		minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: req.Metadata,
		})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "document upload failed")
	}

	s.logger.Debug("Document stored",
		logging.String("key", req.ObjectKey),
		logging.Int64("size", info.Size),
	)
	return &UploadResult{
		ObjectKey:  info.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now().UTC(),
	}, nil
}

func (s *documentStore) Download(ctx context.Context, objectKey string) (*DownloadResult, error) {
	obj, err := s.client.API().GetObject(ctx, s.client.Bucket(), objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "document download failed")
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "document stat failed")
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "document read failed")
	}

	return &DownloadResult{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		LastModified: stat.LastModified,
	}, nil
}

func (s *documentStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.API().StatObject(ctx, s.client.Bucket(), objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "document stat failed")
	}
	return true, nil
}

func (s *documentStore) Delete(ctx context.Context, objectKey string) error {
	err := s.client.API().RemoveObject(ctx, s.client.Bucket(), objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "document delete failed")
	}
	return nil
}

func (s *documentStore) ListClaim(ctx context.Context, claimID string) ([]ObjectInfo, error) {
	prefix := "claims/" + claimID + "/"
	ch := s.client.API().ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var out []ObjectInfo
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "document listing failed")
		}
		out = append(out, ObjectInfo{
			ObjectKey:    obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

func (s *documentStore) PresignedDownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry == 0 {
		expiry = s.client.presignExpiry
	}
	u, err := s.client.API().PresignedGetObject(ctx, s.client.Bucket(), objectKey, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "failed to presign download")
	}
	return u.String(), nil
}
