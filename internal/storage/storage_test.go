package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/minio/minio-go/v7"
	"google.golang.org/api/googleapi"
)

type failingStorage struct {
	*MemoryStorage
	err error
}

func (f failingStorage) CreateContainer(ctx context.Context) error { return f.err }

func TestEnsureContainerIsIdempotent(t *testing.T) {
	s := NewMemoryStorage("http://example.test/objects")
	ctx := context.Background()

	created, err := EnsureContainer(ctx, s)
	if err != nil {
		t.Fatalf("first EnsureContainer: %v", err)
	}
	if !created {
		t.Error("first EnsureContainer should report created")
	}

	created, err = EnsureContainer(ctx, s)
	if err != nil {
		t.Fatalf("second EnsureContainer: %v", err)
	}
	if created {
		t.Error("second EnsureContainer should report existing container")
	}
	if !s.Created() {
		t.Error("container should still exist")
	}
}

func TestEnsureContainerPropagatesOtherFailures(t *testing.T) {
	denied := errors.New("403 AuthorizationFailure")
	s := failingStorage{NewMemoryStorage(""), denied}

	_, err := EnsureContainer(context.Background(), s)
	if !errors.Is(err, denied) {
		t.Fatalf("EnsureContainer error = %v, want wrapping %v", err, denied)
	}
}

func TestEnsureContainerSwallowsWrappedExists(t *testing.T) {
	s := failingStorage{NewMemoryStorage(""), errors.Join(errors.New("azure container"), ErrContainerExists)}

	if _, err := EnsureContainer(context.Background(), s); err != nil {
		t.Fatalf("EnsureContainer: %v", err)
	}
}

func TestMemoryPutOverwritesAndServes(t *testing.T) {
	s := NewMemoryStorage("http://example.test/objects/")
	ctx := context.Background()

	if _, err := s.Put(ctx, "a.png", strings.NewReader("first"), 5, "image/png"); err != nil {
		t.Fatal(err)
	}
	url, err := s.Put(ctx, "a.png", strings.NewReader("second"), 6, "image/gif")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://example.test/objects/a.png" {
		t.Errorf("url = %q", url)
	}

	objects, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 || objects[0].Name != "a.png" || objects[0].Size != 6 {
		t.Fatalf("List = %+v, want one 6-byte a.png", objects)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/a.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/gif" {
		t.Errorf("Content-Type = %q, want image/gif", got)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "second" {
		t.Errorf("body = %q, want %q", body, "second")
	}
}

func TestMemoryPutRejectsShortRead(t *testing.T) {
	s := NewMemoryStorage("")
	if _, err := s.Put(context.Background(), "x", strings.NewReader("abc"), 10, "image/png"); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, _, ok := s.Get("x"); ok {
		t.Error("failed put must not publish an object")
	}
}

func TestMemoryServeMissing(t *testing.T) {
	s := NewMemoryStorage("")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/nope.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{"https://acct.blob.core.windows.net/lanternfly-images", "x.png", "https://acct.blob.core.windows.net/lanternfly-images/x.png"},
		{"http://localhost:9000/imgs/", "x.png", "http://localhost:9000/imgs/x.png"},
		{"", "x.png", "/x.png"},
	}
	for _, tt := range tests {
		if got := joinURL(tt.base, tt.name); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Effect   string
			Action   []string
			Resource []string
		}
	}
	if err := json.Unmarshal([]byte(publicReadPolicy("lanternfly-images")), &policy); err != nil {
		t.Fatalf("policy is not valid JSON: %v", err)
	}
	if len(policy.Statement) != 2 {
		t.Fatalf("got %d statements, want 2", len(policy.Statement))
	}
	if got := policy.Statement[1].Resource[0]; got != "arn:aws:s3:::lanternfly-images/*" {
		t.Errorf("object resource = %q", got)
	}
	if got := policy.Statement[0].Action[0]; got != "s3:ListBucket" {
		t.Errorf("bucket action = %q", got)
	}
}

func TestAlreadyExistsClassification(t *testing.T) {
	tests := []struct {
		name  string
		check func(error) bool
		err   error
		want  bool
	}{
		{"minio owned", isBucketOwned, minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}, true},
		{"minio denied", isBucketOwned, minio.ErrorResponse{Code: "AccessDenied"}, false},
		{"s3 owned", isS3BucketOwned, awserr.New(s3.ErrCodeBucketAlreadyOwnedByYou, "", nil), true},
		{"s3 taken by another account", isS3BucketOwned, awserr.New(s3.ErrCodeBucketAlreadyExists, "", nil), false},
		{"gcs conflict", isGCSConflict, &googleapi.Error{Code: http.StatusConflict}, true},
		{"gcs forbidden", isGCSConflict, &googleapi.Error{Code: http.StatusForbidden}, false},
		{"azure exists", isContainerExists, &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "ContainerAlreadyExists"}, true},
		{"azure being deleted", isContainerExists, &azcore.ResponseError{StatusCode: http.StatusConflict, ErrorCode: "ContainerBeingDeleted"}, false},
		{"azure nil", isContainerExists, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
