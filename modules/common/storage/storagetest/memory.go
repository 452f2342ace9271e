// Package storagetest provides an in-memory Storage with failure injection.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"pixelweave-server/modules/common/storage"
)

var ErrInjected = errors.New("injected storage failure")

// Memory - 메모리 기반 Storage
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	// 남은 횟수만큼 Put 실패
	FailPuts int
	// true 면 Get 항상 실패
	FailGets bool
}

func New() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts > 0 {
		m.FailPuts--
		return ErrInjected
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGets {
		return nil, ErrInjected
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return data, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) URL(key string) string {
	return "https://cdn.test/" + key
}

// Has - 키 존재 여부
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys - 저장된 키 목록 (정렬)
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
