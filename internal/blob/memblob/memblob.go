// Package memblob is an in-memory blob adapter for the local build target
// and tests.
package memblob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/siminyang/aboutxtime/internal/blob"
)

type object struct {
	data        []byte
	contentType string
}

type Store struct {
	mu      sync.Mutex
	objects map[string]object
	baseURL string
}

var (
	_ blob.Store  = (*Store)(nil)
	_ blob.Reader = (*Store)(nil)
)

func New(baseURL string) *Store {
	return &Store{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Store) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	s.mu.Lock()
	s.objects[path] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return s.baseURL + "/api/media/" + path, nil
}

func (s *Store) Get(ctx context.Context, path string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	obj, ok := s.objects[path]
	s.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("object %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

// Len reports the number of stored objects, used in tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
