package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsRecorder is a fake GCS JSON API endpoint that remembers every upload
// body it received in full.
type gcsRecorder struct {
	mu      sync.Mutex
	uploads [][]byte
}

func (rec *gcsRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/upload/") {
		rec.mu.Lock()
		rec.uploads = append(rec.uploads, body)
		rec.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"bucket":"b","name":"x.png","size":"4"}`))
}

func (rec *gcsRecorder) committed(payload string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, body := range rec.uploads {
		if bytes.Contains(body, []byte(payload)) {
			return true
		}
	}
	return false
}

func newTestGCS(t *testing.T, h http.Handler) *GCSStorage {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := gcs.NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("gcs.NewClient: %v", err)
	}
	s := &GCSStorage{client: client, bucket: "b", projectID: "p", publicBase: gcsPublicHost + "/b"}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGCSPutStoresObject(t *testing.T) {
	rec := &gcsRecorder{}
	s := newTestGCS(t, rec)

	url, err := s.Put(context.Background(), "x.png", strings.NewReader("WHOLE"), 5, "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://storage.googleapis.com/b/x.png" {
		t.Errorf("url = %q", url)
	}
	if !rec.committed("WHOLE") {
		t.Error("upload body never reached the endpoint")
	}
}

func TestGCSPutAbortsOnReadFailure(t *testing.T) {
	rec := &gcsRecorder{}
	s := newTestGCS(t, rec)

	diskErr := errors.New("disk read error")
	reader := io.MultiReader(strings.NewReader("PARTIAL"), iotest.ErrReader(diskErr))

	_, err := s.Put(context.Background(), "x.png", reader, 64, "image/png")
	if !errors.Is(err, diskErr) {
		t.Fatalf("Put error = %v, want wrapping %v", err, diskErr)
	}
	if rec.committed("PARTIAL") {
		t.Error("failed put committed a partial object")
	}
}
