package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/virgula/mediasync/pkg/mediasync"
)

// Backend is an in-memory implementation of the mediasync.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() mediasync.BlobStore {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Upload stores content in memory
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[objectKey] = data

	return nil
}

// Download retrieves content from memory
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes content from memory
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return errors.New("object not found")
	}
	delete(b.objects, objectKey)

	return nil
}

// GetDownloadURL returns a pseudo URL for the stored object.
// In-memory storage has no real URLs; callers use Download directly.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, exists := b.objects[objectKey]; !exists {
		return "", errors.New("object not found")
	}

	return "memory://" + objectKey, nil
}
