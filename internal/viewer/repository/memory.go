package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"property-viewer/internal/viewer/models"
)

type memoryRecord struct {
	name      string
	payload   []byte
	updatedAt time.Time
}

// Memory: хранилище описаний в памяти. Описания хранятся сериализованными,
// поэтому Get всегда отдаёт независимую копию.
type Memory struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string]memoryRecord)}
}

func (m *Memory) Get(ctx context.Context, id string) (*models.LayoutDescription, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return models.Decode(bytes.NewReader(rec.payload))
}

func (m *Memory) Put(ctx context.Context, desc *models.LayoutDescription) error {
	if desc == nil || strings.TrimSpace(desc.ID) == "" {
		return errors.New("put layout: empty id")
	}
	payload, err := desc.Encode()
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	m.mu.Lock()
	m.records[desc.ID] = memoryRecord{name: desc.Name, payload: payload, updatedAt: time.Now().UTC()}
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.records))
	for id, rec := range m.records {
		out = append(out, Summary{ID: id, Name: rec.name, UpdatedAt: rec.updatedAt})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
