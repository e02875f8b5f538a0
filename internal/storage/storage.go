// Package storage is the image store behind activity photos.
//
// Objects are keyed activities/<uuid><ext>. The key doubles as the public id
// handed to clients; the URL is what gets stored on activities.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"smartfarm.io/farm/internal/config"
	apperrors "smartfarm.io/farm/internal/pkg/errors"
)

// KeyPrefix is the folder every uploaded image lands in.
const KeyPrefix = "activities/"

// Object is an uploaded image.
type Object struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Store puts and deletes objects by key.
type Store interface {
	// Put writes body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// KeyFromURL maps a URL previously returned by Put back to its key.
	KeyFromURL(url string) (string, bool)
	// Backend names the implementation for metrics and logs.
	Backend() string
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// AllowedContentTypes lists the accepted upload media types.
func AllowedContentTypes() []string {
	return []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}
}

// Validate checks the content type and size of an upload.
func Validate(contentType string, size, maxBytes int64) error {
	if _, ok := extensions[normalizeContentType(contentType)]; !ok {
		return apperrors.BadRequest(apperrors.CodeImageTypeInvalid,
			"Invalid file type. Only JPEG, PNG and WebP are allowed").
			WithParams(map[string]interface{}{"contentType": contentType})
	}
	if size > maxBytes {
		return apperrors.BadRequest(apperrors.CodeImageTooLarge,
			"File too large").
			WithParams(map[string]interface{}{"maxBytes": maxBytes, "size": size})
	}
	return nil
}

// NewKey returns a fresh object key for an upload of contentType.
func NewKey(contentType string) (string, error) {
	ext, ok := extensions[normalizeContentType(contentType)]
	if !ok {
		return "", fmt.Errorf("no extension for content type %q", contentType)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return KeyPrefix + id.String() + ext, nil
}

// ValidKey reports whether key names an uploaded image. Anything outside the
// upload folder or with path traversal is rejected.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || strings.Contains(key, "..") {
		return false
	}
	name := strings.TrimPrefix(key, KeyPrefix)
	return name != "" && !strings.ContainsAny(name, `/\`)
}

// SniffContentType detects the media type from the first bytes of a file.
func SniffContentType(head []byte) string {
	return http.DetectContentType(head)
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	case config.StorageS3:
		return NewS3(ctx, cfg.S3, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	return key, ValidKey(key)
}
