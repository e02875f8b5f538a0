package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "smartfarm.io/farm/internal/pkg/errors"
	"smartfarm.io/farm/internal/service"
	"smartfarm.io/farm/internal/storage"
)

const uploadField = "file"

// contentType is the part's declared media type, sniffed from its first
// bytes when the client sent none.
func contentType(fh *multipart.FileHeader) string {
	ct := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	f, err := fh.Open()
	if err != nil {
		return ct
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return storage.SniffContentType(head[:n])
}

// Upload handles POST /uploads (multipart, repeatable "file" field).
func (s *Server) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		fail(c, apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid multipart body", http.StatusBadRequest))
		return
	}
	var headers []*multipart.FileHeader
	if form != nil {
		headers = form.File[uploadField]
	}

	files := make([]service.UploadFile, len(headers))
	for i, fh := range headers {
		fh := fh
		files[i] = service.UploadFile{
			Filename:    fh.Filename,
			ContentType: contentType(fh),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	objects, err := s.uploads.Upload(c.Request.Context(), principal(c), files)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, objects)
}

// DeleteUpload handles DELETE /uploads/*publicId. The public id contains a
// slash (activities/<name>), so it is taken from a catch-all segment.
func (s *Server) DeleteUpload(c *gin.Context) {
	publicID := strings.TrimPrefix(c.Param("publicId"), "/")
	if err := s.uploads.Delete(c.Request.Context(), principal(c), publicID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
