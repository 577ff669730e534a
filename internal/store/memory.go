package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/document"
)

// Memory is a Repository held in process memory, for development without a
// database.
type Memory struct {
	mu       sync.Mutex
	versions map[string][][]byte
	created  map[string][]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		versions: make(map[string][][]byte),
		created:  make(map[string][]time.Time),
	}
}

func (m *Memory) Save(_ context.Context, id string, doc *document.Configuration) (int, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal configuration: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[id] = append(m.versions[id], data)
	m.created[id] = append(m.created[id], time.Now().UTC())
	return len(m.versions[id]), nil
}

func (m *Memory) Latest(_ context.Context, id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.versions[id]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	snap := &Snapshot{ID: id, Version: len(versions), CreatedAt: m.created[id][len(versions)-1]}
	if err := json.Unmarshal(versions[len(versions)-1], &snap.Document); err != nil {
		return nil, fmt.Errorf("unmarshal configuration %s: %w", id, err)
	}
	return snap, nil
}
