package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCSStorage implements Storage on a Google Cloud Storage bucket.
type GCSStorage struct {
	client     *gcs.Client
	bucket     string
	projectID  string
	publicBase string
}

// GCSOptions holds the connection settings for NewGCSStorage. An empty
// CredentialsFile uses Application Default Credentials.
type GCSOptions struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
	PublicBase      string
}

// NewGCSStorage creates a GCS client.
func NewGCSStorage(ctx context.Context, opts GCSOptions) (*GCSStorage, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("gcs: project id is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	publicBase := opts.PublicBase
	if publicBase == "" {
		publicBase = gcsPublicHost + "/" + opts.Bucket
	}

	return &GCSStorage{
		client:     client,
		bucket:     opts.Bucket,
		projectID:  opts.ProjectID,
		publicBase: publicBase,
	}, nil
}

// CreateContainer creates the bucket with publicRead ACLs on the bucket and
// on new objects.
func (s *GCSStorage) CreateContainer(ctx context.Context) error {
	err := s.client.Bucket(s.bucket).Create(ctx, s.projectID, &gcs.BucketAttrs{
		PredefinedACL:              "publicRead",
		PredefinedDefaultObjectACL: "publicRead",
	})
	if isGCSConflict(err) {
		return fmt.Errorf("gcs bucket %q: %w", s.bucket, ErrContainerExists)
	}
	if err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	return nil
}

// Put writes reader through a storage.Writer; the object only becomes
// visible once Close succeeds. A failed copy cancels the writer's context
// before closing, which aborts the upload instead of committing it.
func (s *GCSStorage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, reader); err != nil {
		cancel()
		// Close now only waits for the aborted upload goroutine.
		_ = wc.Close()
		return "", fmt.Errorf("write object %q: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close object %q: %w", name, err)
	}
	return s.PublicURL(name), nil
}

// List iterates all objects in lexical order.
func (s *GCSStorage) List(ctx context.Context) ([]Object, error) {
	objects := []Object{}
	it := s.client.Bucket(s.bucket).Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		objects = append(objects, Object{Name: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}

// PublicURL returns "https://storage.googleapis.com/<bucket>/<name>" unless a
// public base was configured.
func (s *GCSStorage) PublicURL(name string) string {
	return joinURL(s.publicBase, name)
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func isGCSConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

var _ Storage = (*GCSStorage)(nil)
