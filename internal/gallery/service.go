// Package gallery implements the image intake pipeline and the gallery
// listing on top of an object store.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/lanternfly/gallery/internal/storage"
)

// DefaultMaxSize is the upload ceiling: 10 MiB.
const DefaultMaxSize int64 = 10 << 20

// UploadRequest is a single file submission.
type UploadRequest struct {
	// File is the payload; nil when the request had no file part.
	File io.Reader
	// Filename is the client-supplied name, untrusted.
	Filename string
	// ContentType is the declared type of the part, untrusted.
	ContentType string
	// Parts is the number of file parts received under the file field.
	// Zero is treated as one when File is set.
	Parts int
}

// StoredObject describes a successfully persisted upload.
type StoredObject struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Service contains the upload pipeline and the gallery reader.
type Service struct {
	store   storage.Storage
	policy  TypePolicy
	maxSize int64
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTypePolicy sets the content type policy. Default PolicyAllowList.
func WithTypePolicy(p TypePolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMaxSize sets the upload ceiling in bytes. Default DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithClock overrides the time source used for object names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a new gallery Service backed by store.
func NewService(store storage.Storage, opts ...Option) *Service {
	s := &Service{
		store:   store,
		policy:  PolicyAllowList,
		maxSize: DefaultMaxSize,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSize returns the configured upload ceiling in bytes.
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload validates req and stores it. The gates run in order (presence,
// type, size) and the first failure is returned without touching storage.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*StoredObject, error) {
	if req.File == nil {
		return nil, ErrMissingFile
	}
	if req.Parts > 1 {
		return nil, fmt.Errorf("%w: expected exactly one file, got %d", ErrMissingFile, req.Parts)
	}

	if !s.policy.Allows(req.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, req.ContentType)
	}

	body, size, err := measure(req.File, s.maxSize)
	if err != nil {
		return nil, err
	}
	if size > s.maxSize {
		return nil, s.tooLarge()
	}

	name := ObjectName(s.now(), req.Filename, req.ContentType)

	url, err := s.store.Put(ctx, name, body, size, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	s.log.Info().
		Str("name", name).
		Str("url", url).
		Int64("size", size).
		Str("content_type", req.ContentType).
		Msg("uploaded")

	return &StoredObject{
		Name:        name,
		URL:         url,
		ContentType: req.ContentType,
		Size:        size,
	}, nil
}

// List returns the public URL of every stored object, in store order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailure, err)
	}

	urls := make([]string, 0, len(objects))
	for _, obj := range objects {
		urls = append(urls, s.store.PublicURL(obj.Name))
	}
	return urls, nil
}

func (s *Service) tooLarge() error {
	return fmt.Errorf("%w (>%s)", ErrTooLarge, humanize.IBytes(uint64(s.maxSize)))
}

// measure returns the payload length without consuming it. Seekable streams
// (multipart files) are measured by seeking to the end and back; anything
// else is read into memory up to limit+1 bytes and replayed from there.
func measure(r io.Reader, limit int64) (io.Reader, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, fmt.Errorf("measure upload: %w", err)
		}
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("measure upload: %w", err)
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("rewind upload: %w", err)
		}
		return rs, end - start, nil
	}

	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, limit + 1, nil
		}
		return nil, 0, fmt.Errorf("read upload: %w", err)
	}
	return bytes.NewReader(buf), int64(len(buf)), nil
}
