// Package storage keeps binary objects (listing images) outside MongoDB.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore is implemented by MinIOStorage and MemoryStore.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process. Its presigned URLs point at BaseURL.
type MemoryStore struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: baseURL, objects: map[string]memObject{}}
}

func (m *MemoryStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: b, contentType: contentType}
	return nil
}

func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (m *MemoryStore) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	q := url.Values{"expires": {time.Now().Add(expires).UTC().Format(time.RFC3339)}}
	return m.BaseURL + "/" + key + "?" + q.Encode(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// ContentType returns the stored content type of key.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}
