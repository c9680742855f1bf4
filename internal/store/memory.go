package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same versioning semantics as
// SQLiteStore. It backs tests and the --ephemeral serve mode.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	alarms  map[string]time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		alarms:  make(map[string]time.Time),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	r.Data = append([]byte(nil), r.Data...)
	return &r, nil
}

func (m *MemoryStore) Put(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[r.Key]
	switch {
	case !ok && r.Version != 0, ok && current.Version != r.Version:
		return fmt.Errorf("writing record %q at version %d: %w", r.Key, r.Version, ErrVersionConflict)
	}

	r.Version++
	r.UpdatedAt = time.Now()
	m.records[r.Key] = Record{
		Key:       r.Key,
		Data:      append([]byte(nil), r.Data...),
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SaveAlarm(_ context.Context, a Alarm) error {
	m.mu.Lock()
	m.alarms[a.Label] = a.FireAt
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteAlarm(_ context.Context, label string) error {
	m.mu.Lock()
	delete(m.alarms, label)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ClearAlarm(_ context.Context, label string, fireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at, ok := m.alarms[label]; ok && at.Equal(fireAt) {
		delete(m.alarms, label)
	}
	return nil
}

func (m *MemoryStore) ListAlarms(_ context.Context) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alarms := make([]Alarm, 0, len(m.alarms))
	for label, at := range m.alarms {
		alarms = append(alarms, Alarm{Label: label, FireAt: at})
	}
	sort.Slice(alarms, func(i, j int) bool { return alarms[i].FireAt.Before(alarms[j].FireAt) })
	return alarms, nil
}

func (m *MemoryStore) Close() error { return nil }
