package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// ============================================================
// Memory Store
// ============================================================

type memoryObject struct {
	data []byte
	info Info
}

// MemoryStore держит объекты в памяти. Для тестов и dev-режима.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Driver() Driver { return DriverMemory }

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, fmt.Errorf("read blob %s: %w", key, err)
	}
	info := Info{
		Key:          k,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         etag(data),
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[k] = memoryObject{data: data, info: info}
	s.mu.Unlock()
	return info, nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return Info{}, nil, err
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (Info, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return Info{}, err
	}
	return obj.info, nil
}

func (s *MemoryStore) lookup(key string) (memoryObject, error) {
	k, err := cleanKey(key)
	if err != nil {
		return memoryObject{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[k]
	if !ok {
		return memoryObject{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return obj, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[k]; !ok {
		return false, nil
	}
	delete(s.objects, k)
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.objects))
	for k, obj := range s.objects {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, obj.info)
		}
	}
	s.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
