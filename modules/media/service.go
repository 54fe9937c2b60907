package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperr"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/google/uuid"
)

// RefPrefix is the public path under which stored images are served.
const RefPrefix = "/api/media/"

var (
	// ErrInvalidDataURL is returned when an upload is not a base64 data URL.
	ErrInvalidDataURL = apperr.Validation("image must be a base64 data URL")
	// ErrUnsupportedType is returned for non-image payloads.
	ErrUnsupportedType = apperr.Validation("unsupported image type")
	// ErrTooLarge is returned when the decoded image exceeds the size limit.
	ErrTooLarge = apperr.Validation("image is too large")
	// ErrImageNotFound is returned when no image has the requested id.
	ErrImageNotFound = apperr.NotFound("image not found")
)

// Image describes a stored image.
type Image struct {
	ID          string    `json:"id"`
	Ref         string    `json:"ref"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Service stores and serves images in an fs-jetstream bucket.
type Service struct {
	bucket   fsjetstream.FileStoragePort
	maxBytes int
}

// NewService creates a new Service over bucket.
func NewService(bucket fsjetstream.FileStoragePort, maxBytes int) *Service {
	return &Service{bucket: bucket, maxBytes: maxBytes}
}

// Upload decodes a data URL of the form "data:image/png;base64,..." and
// stores the image under a fresh id.
func (s *Service) Upload(ctx context.Context, dataURL string) (*Image, error) {
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	if len(data) > s.maxBytes {
		return nil, ErrTooLarge
	}

	id := uuid.New().String()
	info, err := s.bucket.Put(ctx, storageKey(id), data,
		fsjetstream.WithDescription("chat image"),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type": contentType,
			"Image-ID":     id,
			"Uploaded-At":  time.Now().UTC().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return nil, apperr.Internal("failed to store image", err)
	}

	return &Image{
		ID:          id,
		Ref:         RefPrefix + id,
		ContentType: contentType,
		Size:        int64(info.Size),
		Digest:      info.Digest,
		CreatedAt:   info.ModTime,
	}, nil
}

// Get returns the bytes and metadata of the image with the given id.
func (s *Service) Get(_ context.Context, id string) ([]byte, *Image, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, ErrImageNotFound
	}

	objects, err := s.bucket.List(fsjetstream.WithPrefix(id + "/"))
	if err != nil {
		return nil, nil, apperr.Internal("failed to list images", err)
	}
	if len(objects) == 0 {
		return nil, nil, ErrImageNotFound
	}
	obj := objects[0]

	data, err := s.bucket.Get(obj.Name)
	if err != nil {
		return nil, nil, apperr.Internal("failed to read image", err)
	}

	contentType := obj.Headers["Content-Type"]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, &Image{
		ID:          id,
		Ref:         RefPrefix + id,
		ContentType: contentType,
		Size:        int64(obj.Size),
		Digest:      obj.Digest,
		CreatedAt:   obj.ModTime,
	}, nil
}

// Delete removes the image with the given id. A missing image is not an
// error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if err := s.bucket.DeleteWithContext(ctx, storageKey(id)); err != nil {
		return apperr.Internal("failed to delete image", err)
	}
	return nil
}

// IsRef reports whether ref points at an image this service serves.
func IsRef(ref string) bool {
	id, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func storageKey(id string) string {
	return fmt.Sprintf("%s/image", id)
}

func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, ErrUnsupportedType
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidDataURL
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidDataURL
	}
	return contentType, data, nil
}
