// ABOUTME: In-memory Backend implementation for tests and ephemeral runs
// ABOUTME: Mirrors SQLiteStore semantics, including injectable I/O failures

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is an in-memory Backend. Records do not survive the process.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[Partition]map[string]Record
	failure    error
	logger     *slog.Logger
	now        func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		partitions: make(map[Partition]map[string]Record),
		logger:     o.logger,
		now:        o.now,
	}
}

// SetFailure makes every subsequent operation fail with err until it is
// called again with nil.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Open creates any missing partitions.
func (m *MemoryStore) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range Partitions() {
		if _, ok := m.partitions[p]; !ok {
			m.partitions[p] = make(map[string]Record)
		}
	}
	return nil
}

// check must be called with mu held.
func (m *MemoryStore) check(op string, p Partition) bool {
	if !p.Valid() {
		m.logger.Warn("cache "+op+" error", "partition", string(p), "error", ErrUnknownPartition)
		return false
	}
	if m.failure != nil {
		m.logger.Warn("cache "+op+" error", "partition", string(p), "error", m.failure)
		return false
	}
	if _, ok := m.partitions[p]; !ok {
		m.partitions[p] = make(map[string]Record)
	}
	return true
}

// Set stores a copy of payload under key.
func (m *MemoryStore) Set(ctx context.Context, p Partition, key string, payload []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.check("set", p) {
		return false
	}

	m.partitions[p][key] = Record{
		ID:          key,
		Payload:     append([]byte(nil), payload...),
		LastUpdated: m.now(),
	}
	return true
}

// Get returns a copy of the record stored under key.
func (m *MemoryStore) Get(ctx context.Context, p Partition, key string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.check("get", p) {
		return Record{}, false
	}

	rec, ok := m.partitions[p][key]
	if !ok {
		return Record{}, false
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, true
}

// GetAll returns copies of every record in the partition.
func (m *MemoryStore) GetAll(ctx context.Context, p Partition) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.check("getAll", p) {
		return []Record{}
	}

	records := make([]Record, 0, len(m.partitions[p]))
	for _, rec := range m.partitions[p] {
		rec.Payload = append([]byte(nil), rec.Payload...)
		records = append(records, rec)
	}
	return records
}

// Remove deletes key from the partition.
func (m *MemoryStore) Remove(ctx context.Context, p Partition, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.check("remove", p) {
		return false
	}
	delete(m.partitions[p], key)
	return true
}

// Clear empties the partition.
func (m *MemoryStore) Clear(ctx context.Context, p Partition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.check("clear", p) {
		return false
	}
	m.partitions[p] = make(map[string]Record)
	return true
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
