// Package testing provides an in-memory blob store for coordinator tests.
package testing

import (
	"context"
	"os"
	"sync"

	"github.com/cryptocole01/p0tion/coordinator/blob"
	"github.com/pkg/errors"
)

// MockStore implements blob.Store against an in-memory object map and
// records every delete for later inspection.
type MockStore struct {
	mu sync.Mutex
	// Objects maps "bucket/key" to object contents.
	Objects map[string][]byte
	// Deleted collects "bucket/key" entries in deletion order.
	Deleted []string
	// DownloadErr and DeleteErr, when set, fail the respective calls.
	DownloadErr error
	DeleteErr   error
}

var _ blob.Store = (*MockStore)(nil)

// NewMockStore returns an empty store.
func NewMockStore() *MockStore {
	return &MockStore{Objects: make(map[string][]byte)}
}

// Put seeds an object.
func (m *MockStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[bucket+"/"+key] = data
}

// Download writes the seeded object to localPath.
func (m *MockStore) Download(_ context.Context, bucket, key, localPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	data, ok := m.Objects[bucket+"/"+key]
	if !ok {
		return errors.Errorf("no object %s/%s", bucket, key)
	}
	return os.WriteFile(localPath, data, 0600)
}

// Delete records the deletion and drops the object if present.
func (m *MockStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, bucket+"/"+key)
	delete(m.Objects, bucket+"/"+key)
	return nil
}
