package gallery

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lanternfly/gallery/internal/storage"
)

type filePart struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, parts ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return body, mw.FormDataContentType()
}

type envelope struct {
	OK      bool     `json:"ok"`
	URL     string   `json:"url"`
	Gallery []string `json:"gallery"`
	Error   string   `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Post("/api/v1/upload", h.Upload)
	r.Get("/api/v1/gallery", h.Gallery)
	return r
}

func TestHandlerUpload(t *testing.T) {
	tests := []struct {
		name       string
		parts      []filePart
		wantStatus int
		wantErr    string
	}{
		{
			name:       "ok",
			parts:      []filePart{{"file", "a.png", "image/png", []byte{1, 2, 3}}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong field",
			parts:      []filePart{{"image", "a.png", "image/png", []byte{1}}},
			wantStatus: http.StatusBadRequest,
			wantErr:    "missing file field",
		},
		{
			name: "two files",
			parts: []filePart{
				{"file", "a.png", "image/png", []byte{1}},
				{"file", "b.png", "image/png", []byte{2}},
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    "missing file field",
		},
		{
			name:       "pdf",
			parts:      []filePart{{"file", "a.pdf", "application/pdf", []byte("%PDF")}},
			wantStatus: http.StatusUnsupportedMediaType,
			wantErr:    "invalid file type",
		},
		{
			name:       "11 MiB",
			parts:      []filePart{{"file", "big.png", "image/png", make([]byte, 11<<20)}},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantErr:    "file too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			body, ct := multipartBody(t, tt.parts...)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			env := decode(t, rec)
			if env.OK != (tt.wantStatus == http.StatusOK) {
				t.Errorf("ok = %v", env.OK)
			}
			if tt.wantErr != "" {
				if !strings.Contains(env.Error, tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", env.Error, tt.wantErr)
				}
				if store.PutCalls() != 0 {
					t.Error("Put called on rejected upload")
				}
				return
			}
			if !strings.HasSuffix(env.URL, "/20250102T030405-a.png") {
				t.Errorf("url = %q", env.URL)
			}
		})
	}
}

func TestHandlerUploadNotMultipart(t *testing.T) {
	svc, _ := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env := decode(t, rec); env.OK || env.Error == "" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestHandlerUploadStorageFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.FailWith = errors.New("AuthenticationFailed")
	body, ct := multipartBody(t, filePart{"file", "a.png", "image/png", []byte{1}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env := decode(t, rec); !strings.Contains(env.Error, "AuthenticationFailed") {
		t.Errorf("error = %q, want storage detail", env.Error)
	}
}

func TestHandlerGalleryEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":true,"gallery":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestHandlerGalleryFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.FailWith = errors.New("dial tcp: no route to host")
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env := decode(t, rec); env.OK || !strings.Contains(env.Error, "no route to host") {
		t.Errorf("envelope = %+v", env)
	}
}

// TestUploadRoundTrip uploads through the HTTP boundary and fetches the
// returned URL from a server backed by the same store.
func TestUploadRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := storage.NewMemoryStorage(srv.URL + "/objects")
	svc := NewService(store, WithClock(func() time.Time { return fixedTime }))
	mux.Handle("/objects/", store)
	mux.Handle("/", newTestRouter(svc))

	payload := []byte("GIF89a\x01\x00\x01\x00")
	body, ct := multipartBody(t, filePart{"file", "tiny.gif", "image/gif", payload})
	resp, err := http.Post(srv.URL+"/api/v1/upload", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	var up envelope
	_ = json.NewDecoder(resp.Body).Decode(&up)
	resp.Body.Close()
	if !up.OK {
		t.Fatalf("upload failed: %+v", up)
	}

	resp, err = http.Get(srv.URL + "/api/v1/gallery")
	if err != nil {
		t.Fatal(err)
	}
	var list envelope
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list.Gallery) != 1 || list.Gallery[0] != up.URL {
		t.Fatalf("gallery = %v, want [%s]", list.Gallery, up.URL)
	}

	resp, err = http.Get(list.Gallery[0])
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(got, payload) {
		t.Errorf("fetched %q, want %q", got, payload)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/gif" {
		t.Errorf("fetched Content-Type = %q, want image/gif", ct)
	}
}
