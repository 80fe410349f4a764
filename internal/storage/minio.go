package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// Pointing it at another S3-compatible provider only needs a different
// STORAGE_ENDPOINT and credentials.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string
}

// MinioOptions holds the connection settings for NewMinioStorage.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/lanternfly-images"
}

// NewMinioStorage creates a MinIO client. No network call is made until the
// first operation.
func NewMinioStorage(opts MinioOptions) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicBase := opts.PublicBase
	if publicBase == "" {
		publicBase = client.EndpointURL().String() + "/" + opts.Bucket
	}

	return &MinioStorage{
		client:     client,
		bucket:     opts.Bucket,
		region:     opts.Region,
		publicBase: publicBase,
	}, nil
}

// CreateContainer makes the bucket and applies the public-read policy. The
// policy is (re)applied when the bucket already exists so that a bucket
// created out of band still serves gallery URLs.
func (s *MinioStorage) CreateContainer(ctx context.Context) error {
	var existed bool
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		if !isBucketOwned(err) {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
		existed = true
	}

	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}

	if existed {
		return fmt.Errorf("bucket %q: %w", s.bucket, ErrContainerExists)
	}
	return nil
}

// Put streams reader to MinIO under name. size must be the exact byte count
// (pass -1 only if the size is genuinely unknown, MinIO will buffer it).
func (s *MinioStorage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", name, err)
	}
	return s.PublicURL(name), nil
}

// List enumerates the bucket in key order.
func (s *MinioStorage) List(ctx context.Context) ([]Object, error) {
	objects := []Object{}
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		objects = append(objects, Object{Name: info.Key, Size: info.Size})
	}
	return objects, nil
}

// PublicURL returns the browser-accessible URL for the given name.
// For local MinIO: "http://localhost:9000/lanternfly-images/20240101T000000-a.png"
func (s *MinioStorage) PublicURL(name string) string {
	return joinURL(s.publicBase, name)
}

// isBucketOwned reports whether a MakeBucket error means we already own the bucket.
func isBucketOwned(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous
// listing of the bucket and GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": map[string]interface{}{"AWS": []string{"*"}},
				"Action":    []string{"s3:ListBucket"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s", bucket)},
			},
			{
				"Effect":    "Allow",
				"Principal": map[string]interface{}{"AWS": []string{"*"}},
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}

var _ Storage = (*MinioStorage)(nil)
