package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// uploadPartSize matches the upload ceiling so gallery images go up in a
// single PUT.
const uploadPartSize = 10 * 1024 * 1024

// S3Storage implements Storage on an AWS S3 bucket.
type S3Storage struct {
	client     s3iface.S3API
	uploader   *s3manager.Uploader
	bucket     string
	region     string
	publicBase string
}

// S3Options holds the connection settings for NewS3Storage. Empty keys fall
// back to the default AWS credential chain.
type S3Options struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	PublicBase string
}

// NewS3Storage opens an AWS session for the configured region.
func NewS3Storage(opts S3Options) (*S3Storage, error) {
	if opts.Region == "" || opts.Bucket == "" {
		return nil, errors.New("s3: region and bucket are required")
	}

	var creds *credentials.Credentials
	if opts.AccessKey != "" {
		creds = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:      aws.String(opts.Region),
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}

	publicBase := opts.PublicBase
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}

	client := s3.New(sess)
	return &S3Storage{
		client: client,
		uploader: s3manager.NewUploaderWithClient(client, func(u *s3manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		bucket:     opts.Bucket,
		region:     opts.Region,
		publicBase: publicBase,
	}, nil
}

// CreateContainer creates the bucket and attaches the public-read policy.
// The bucket's Block Public Access settings must allow bucket policies.
func (s *S3Storage) CreateContainer(ctx context.Context) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(s.region),
		}
	}

	var existed bool
	if _, err := s.client.CreateBucketWithContext(ctx, input); err != nil {
		if !isS3BucketOwned(err) {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
		existed = true
	}

	_, err := s.client.PutBucketPolicyWithContext(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(s.bucket),
		Policy: aws.String(publicReadPolicy(s.bucket)),
	})
	if err != nil {
		return fmt.Errorf("put bucket policy: %w", err)
	}

	if existed {
		return fmt.Errorf("bucket %q: %w", s.bucket, ErrContainerExists)
	}
	return nil
}

// Put uploads reader with the given content type.
func (s *S3Storage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", name, err)
	}
	return s.PublicURL(name), nil
}

// List walks every page of ListObjectsV2.
func (s *S3Storage) List(ctx context.Context) ([]Object, error) {
	objects := []Object{}
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, item := range page.Contents {
			objects = append(objects, Object{
				Name: aws.StringValue(item.Key),
				Size: aws.Int64Value(item.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// PublicURL returns the virtual-hosted style URL for name.
func (s *S3Storage) PublicURL(name string) string {
	return joinURL(s.publicBase, name)
}

// isS3BucketOwned reports whether a CreateBucket error means the bucket is
// already ours. BucketAlreadyExists (owned by another account) is a real failure.
func isS3BucketOwned(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou
}

var _ Storage = (*S3Storage)(nil)
