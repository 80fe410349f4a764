package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryStorage is an in-process Storage used by tests and by local runs
// without cloud credentials. It also implements http.Handler so the URLs it
// hands out can be served; mount it under the path of its public base.
type MemoryStorage struct {
	mu         sync.RWMutex
	created    bool
	objects    map[string]memoryObject
	publicBase string

	// FailWith, when set, is returned by every Put and List call.
	FailWith error

	puts int
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage returns an empty store whose URLs start with publicBase.
func NewMemoryStorage(publicBase string) *MemoryStorage {
	return &MemoryStorage{
		objects:    make(map[string]memoryObject),
		publicBase: publicBase,
	}
}

// CreateContainer marks the container as created.
func (s *MemoryStorage) CreateContainer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		return ErrContainerExists
	}
	s.created = true
	return nil
}

// Put buffers reader fully before publishing the object, so a failed read
// leaves the previous state untouched.
func (s *MemoryStorage) Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	s.puts++
	failWith := s.FailWith
	s.mu.Unlock()
	if failWith != nil {
		return "", failWith
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read object %q: %w", name, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("object %q: got %d bytes, want %d", name, len(data), size)
	}

	s.mu.Lock()
	s.objects[name] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return s.PublicURL(name), nil
}

// List returns objects sorted by name, like the cloud backends do.
func (s *MemoryStorage) List(ctx context.Context) ([]Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	objects := make([]Object, 0, len(s.objects))
	for name, obj := range s.objects {
		objects = append(objects, Object{Name: name, Size: int64(len(obj.data))})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// PublicURL returns "<public base>/<name>".
func (s *MemoryStorage) PublicURL(name string) string {
	return joinURL(s.publicBase, name)
}

// Created reports whether CreateContainer has succeeded at least once.
func (s *MemoryStorage) Created() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created
}

// PutCalls returns how many times Put has been invoked.
func (s *MemoryStorage) PutCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Get returns a copy of the stored bytes and content type for name.
func (s *MemoryStorage) Get(name string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(obj.data), obj.contentType, true
}

// ServeHTTP serves the object named by the last path segment of the request.
func (s *MemoryStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	data, contentType, ok := s.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(data)
	}
}

var _ Storage = (*MemoryStorage)(nil)
