package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jverhagen/fotomemo/internal/model"
)

var _ Repository = (*MemStore)(nil)

// MemStore is an in-memory Repository with the same semantics as the SQLite
// store. It backs tests of the core logic and keeps the storage contract
// honest: anything that works against MemStore must work against Store.
type MemStore struct {
	mu    sync.Mutex
	files map[string]StoredFile
	order []string // insertion order for LoadAll
	slots map[string]string

	// UpdateErr, when set, fails UpdateMetadata for the given ids. Used to
	// exercise partial cascade failures.
	UpdateErr map[string]error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		files: make(map[string]StoredFile),
		slots: make(map[string]string),
	}
}

// UpsertMany merges a batch with the same preserve-user-metadata policy as
// the SQLite store.
func (m *MemStore) UpsertMany(_ context.Context, files []StoredFile) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res UpsertResult
	for _, f := range files {
		if existing, ok := m.files[f.ID]; ok {
			f.Meta.CustomName = existing.Meta.CustomName
			f.Meta.Category = existing.Meta.Category
			f.Meta.Notes = existing.Meta.Notes
			res.Updated++
		} else {
			m.order = append(m.order, f.ID)
			res.Inserted++
		}
		m.files[f.ID] = f
	}
	return res, nil
}

func (m *MemStore) UpdateMetadata(_ context.Context, id string, patch model.MetaPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErr[id]; err != nil {
		return err
	}
	f, ok := m.files[id]
	if !ok {
		return nil
	}
	if patch.CustomName != nil {
		f.Meta.CustomName = *patch.CustomName
	}
	if patch.Category != nil {
		f.Meta.Category = *patch.Category
	}
	if patch.Notes != nil {
		f.Meta.Notes = *patch.Notes
	}
	m.files[id] = f
	return nil
}

func (m *MemStore) DeleteMany(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := m.files[id]; !ok {
			continue
		}
		delete(m.files, id)
		deleted++
	}
	if deleted > 0 {
		kept := m.order[:0]
		for _, id := range m.order {
			if _, ok := m.files[id]; ok {
				kept = append(kept, id)
			}
		}
		m.order = kept
	}
	return deleted, nil
}

func (m *MemStore) LoadAll(_ context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]model.Item, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.files[id].Meta)
	}
	return items, nil
}

func (m *MemStore) LoadBlob(_ context.Context, id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[id]
	if !ok {
		return nil, "", fmt.Errorf("blob %s: %w", id, ErrNotFound)
	}
	return f.Buffer, f.MimeType, nil
}

func (m *MemStore) GetSlot(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[key], nil
}

func (m *MemStore) SetSlot(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *MemStore) DeleteSlot(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// Meta returns the stored metadata for id, for test assertions.
func (m *MemStore) Meta(id string) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return model.Item{}, errors.New("no such record: " + id)
	}
	return f.Meta, nil
}
