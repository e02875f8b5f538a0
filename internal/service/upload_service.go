package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"smartfarm.io/farm/internal/authz"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/metrics"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/storage"
)

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadService stores activity photos in the image store.
type UploadService struct {
	store    storage.Store
	pool     *worker.Pool
	maxBytes int64
}

// NewUploadService creates an UploadService. Multi-file uploads are written
// concurrently on pool.
func NewUploadService(store storage.Store, pool *worker.Pool, maxBytes int64) *UploadService {
	return &UploadService{store: store, pool: pool, maxBytes: maxBytes}
}

// Upload validates every file first, then stores them all. The result keeps
// the order of files.
func (s *UploadService) Upload(ctx context.Context, p authz.Principal, files []UploadFile) ([]storage.Object, error) {
	if err := authz.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.BadRequest(apperrors.CodeImageMissing, "No file uploaded")
	}
	keys := make([]string, len(files))
	for i, f := range files {
		if err := storage.Validate(f.ContentType, f.Size, s.maxBytes); err != nil {
			return nil, err
		}
		key, err := storage.NewKey(f.ContentType)
		if err != nil {
			return nil, apperrors.ErrInternal(err)
		}
		keys[i] = key
	}

	out := make([]storage.Object, len(files))
	tasks := make([]func(ctx context.Context) error, len(files))
	for i := range files {
		tasks[i] = func(ctx context.Context) error {
			url, err := s.put(ctx, keys[i], files[i])
			if err != nil {
				return err
			}
			out[i] = storage.Object{URL: url, PublicID: keys[i]}
			return nil
		}
	}
	if err := s.pool.Group(ctx, tasks...); err != nil {
		s.rollback(out)
		return nil, storeErr("store upload", err)
	}
	return out, nil
}

func (s *UploadService) put(ctx context.Context, key string, f UploadFile) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer body.Close()

	url, err := s.store.Put(ctx, key, f.ContentType, body, f.Size)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ImagesStored.WithLabelValues(s.store.Backend(), outcome).Inc()
	return url, err
}

// rollback removes the objects of a partially failed upload.
func (s *UploadService) rollback(objs []storage.Object) {
	for _, o := range objs {
		if o.PublicID == "" {
			continue
		}
		if err := s.store.Delete(context.Background(), o.PublicID); err != nil {
			logger.Warn("failed to remove partial upload", zap.String("public_id", o.PublicID), zap.Error(err))
		}
	}
}

// Delete removes an uploaded image by public id.
func (s *UploadService) Delete(ctx context.Context, p authz.Principal, publicID string) error {
	if err := authz.RequireAuthenticated(p); err != nil {
		return err
	}
	if !storage.ValidKey(publicID) {
		return apperrors.ErrValidation("publicId", "publicId is not an uploaded image")
	}
	return storeErr("delete upload", s.store.Delete(ctx, publicID))
}
