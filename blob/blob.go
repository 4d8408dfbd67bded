// Package blob abstracts profile picture storage behind a small object
// store interface with an in-memory implementation for tests and an S3
// backed one for deployments.
package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Object describes a stored blob: the key it lives under and the URL it
// is served from.
type Object struct {
	Key string
	URL string
}

// Store is the object storage surface the profile picture flows need.
type Store interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// NewStorageKey returns a date-partitioned random key for an upload.
func NewStorageKey(prefix string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v", prefix, d.Year(), d.Month(), d.Day(), uuid.New())
}

// MemoryStore keeps blobs in a map. Test and development use only.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: map[string][]byte{},
		baseURL: baseURL,
	}
}

func (m *MemoryStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (*Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read blob body")
	}

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return &Object{
		Key: key,
		URL: m.baseURL + "/" + key,
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return goerrors.New("blob not found: "+key, goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound)
	}

	delete(m.objects, key)
	return nil
}

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
