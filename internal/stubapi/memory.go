package stubapi

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	now  func() time.Time
	data map[string]map[string]Doc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, data: make(map[string]map[string]Doc)}
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Doc, 0, len(m.data[collection]))
	for _, d := range m.data[collection] {
		out = append(out, d.clone())
	}
	slices.SortStableFunc(out, func(a, b Doc) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(b.ID(), a.ID())
	})
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.clone(), nil
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, doc Doc) (Doc, error) {
	d := doc.clone()
	if d.ID() == "" {
		d["id"] = uuid.NewString()
	}
	if d.String("createdAt") == "" {
		d["createdAt"] = m.now().UTC().Format(time.RFC3339Nano)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]Doc)
	}
	m.data[collection][d.ID()] = d
	return d.clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, patch Doc) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	d = d.clone()
	for k, v := range patch {
		if k == "id" || k == "createdAt" {
			continue
		}
		d[k] = v
	}
	d["updatedAt"] = m.now().UTC().Format(time.RFC3339Nano)
	m.data[collection][id] = d
	return d.clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.data[collection], id)
	return nil
}
