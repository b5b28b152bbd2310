// Package memory implements an in-memory plugin.TypedBackend. Backend[T]
// stores any resource type the core document model can round-trip
// through scim.ToDocument, so one implementation serves Users, Groups,
// and any deployment-defined resource type.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/arimatsu/scimcore/scim"
)

// Backend is a goroutine-safe, process-local plugin.TypedBackend[T]
// backed by a map keyed on the resource's "id" field. This repo's own
// tests use it (internal/testutil); nothing it holds survives a restart.
type Backend[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewBackend creates an empty Backend for resource type T.
func NewBackend[T any]() *Backend[T] {
	return &Backend[T]{items: make(map[string]T)}
}

func (b *Backend[T]) List(ctx context.Context) ([]T, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, len(b.items))
	for _, item := range b.items {
		out = append(out, item)
	}
	return out, nil
}

func (b *Backend[T]) Create(ctx context.Context, resource T) (T, error) {
	id, err := resourceID(resource)
	if err != nil {
		return resource, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[id] = resource
	return resource, nil
}

func (b *Backend[T]) Get(ctx context.Context, id string) (T, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.items[id]
	return item, ok, nil
}

func (b *Backend[T]) Replace(ctx context.Context, id string, resource T) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[id] = resource
	return resource, nil
}

func (b *Backend[T]) Delete(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		return false, nil
	}
	delete(b.items, id)
	return true, nil
}

// resourceID extracts the "id" field through the document model rather
// than requiring T to satisfy some Identifiable interface, keeping
// Backend usable for deployment-defined resource types that only
// implement the SCIM document shape.
func resourceID(resource any) (string, error) {
	doc, err := scim.ToDocument(resource)
	if err != nil {
		return "", fmt.Errorf("memory: %w", err)
	}
	id, _ := doc["id"].(string)
	if id == "" {
		return "", fmt.Errorf("memory: resource has no id")
	}
	return id, nil
}
