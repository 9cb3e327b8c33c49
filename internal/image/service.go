// Package image stores images uploaded for quiz thumbnails and questions.
package image

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/victornm/openquiz/internal/errors"
)

const (
	// PathPrefix is the URL path images are served under.
	PathPrefix = "/images/"

	defaultExt         = "jpg"
	defaultContentType = "image/jpeg"
	defaultMaxBytes    = 5 << 20
	maxExtLength       = 10
)

var extJunk = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Image is an uploaded blob with the content type it was uploaded with.
type Image struct {
	Key         string
	ContentType string
	Data        []byte
}

// Blobs is the blob store behind the service.
type Blobs interface {
	Put(ctx context.Context, img Image) error
	Get(ctx context.Context, key string) (*Image, error)
}

type Config struct {
	Blobs    Blobs
	MaxBytes int64
}

type Service struct {
	blobs    Blobs
	maxBytes int64
}

func NewService(c Config) *Service {
	s := &Service{
		blobs:    c.Blobs,
		maxBytes: c.MaxBytes,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = defaultMaxBytes
	}

	return s
}

// MaxBytes is the largest upload accepted.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

type UploadRequest struct {
	Filename    string
	ContentType string
	Data        []byte
}

type UploadResponse struct {
	Key string
	URL string
}

// Upload stores the image under a fresh key and returns the URL to reach it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	switch {
	case len(req.Data) == 0:
		return nil, errors.InvalidArgumentf("file is empty")
	case int64(len(req.Data)) > s.maxBytes:
		return nil, errors.InvalidArgumentf("file is larger than %d bytes", s.maxBytes)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("generate image key: %w", err))
	}
	key := id.String() + "." + extension(req.Filename)

	img := Image{
		Key:         key,
		ContentType: strings.TrimSpace(req.ContentType),
		Data:        req.Data,
	}
	if err := s.blobs.Put(ctx, img); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	return &UploadResponse{
		Key: key,
		URL: PathPrefix + key,
	}, nil
}

// Get returns a stored image. Images stored without a content type are
// reported as JPEG.
func (s *Service) Get(ctx context.Context, key string) (*Image, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "/") {
		return nil, errors.NotFoundf("image not found: key=%s", key)
	}

	img, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	if img.ContentType == "" {
		img.ContentType = defaultContentType
	}

	return img, nil
}

func extension(filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	ext = strings.ToLower(extJunk.ReplaceAllString(ext, ""))
	if ext == "" || len(ext) > maxExtLength {
		return defaultExt
	}
	return ext
}
