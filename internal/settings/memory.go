package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps records in memory. Records do not survive a restart.
//
// Thread Safety: All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	logger  Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for handler errors.
func (m *MemoryStore) SetLogger(logger Logger) {
	m.logger = logger
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	m.mu.Lock()
	m.records[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

// Load implements Store. Records are delivered in key order.
func (m *MemoryStore) Load(ctx context.Context, prefix string, handler Handler) error {
	if err := validatePrefix(prefix); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	m.mu.RLock()
	var records []record
	for k, v := range m.records {
		if strings.HasPrefix(k, prefix+"/") {
			records = append(records, record{key: k, data: append([]byte(nil), v...)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool { return records[i].key < records[j].key })
	dispatch(m.logger, prefix, records, handler)
	return nil
}

// HealthCheck implements Store.
func (m *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

// Get returns a copy of the record stored under key.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}
