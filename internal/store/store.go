// ABOUTME: Backend interface and record types for the partitioned key-value cache
// ABOUTME: Defines the closed partition set, Record, and the staleness helper

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrUnknownPartition is returned when a caller names a partition outside the closed set
var ErrUnknownPartition = errors.New("unknown partition")

// DefaultStaleAfter is the generic freshness window for cached records.
const DefaultStaleAfter = 24 * time.Hour

// Partition names an independent namespace within the store.
type Partition string

// The fixed partition set. Open creates any that are missing.
const (
	PartitionArticles   Partition = "articles"
	PartitionMilestones Partition = "milestones"
	PartitionUserData   Partition = "userData"
	PartitionImageCache Partition = "imageCache"
)

// Partitions returns every partition the store manages.
func Partitions() []Partition {
	return []Partition{
		PartitionArticles,
		PartitionMilestones,
		PartitionUserData,
		PartitionImageCache,
	}
}

// Valid reports whether p is one of the managed partitions.
func (p Partition) Valid() bool {
	switch p {
	case PartitionArticles, PartitionMilestones, PartitionUserData, PartitionImageCache:
		return true
	default:
		return false
	}
}

// Record is a single timestamped entry within a partition.
// LastUpdated is stamped by the backend on every write.
type Record struct {
	ID          string
	Payload     []byte
	LastUpdated time.Time
}

// Backend is a best-effort durable store. Implementations log I/O failures and
// report them as false / not-found / empty results; only Open and Close return errors.
type Backend interface {
	// Open prepares the durable media and creates missing partitions.
	// It is idempotent and safe for concurrent callers.
	Open(ctx context.Context) error

	Set(ctx context.Context, partition Partition, key string, payload []byte) bool
	Get(ctx context.Context, partition Partition, key string) (Record, bool)
	// GetAll returns every record in the partition in no particular order.
	GetAll(ctx context.Context, partition Partition) []Record
	Remove(ctx context.Context, partition Partition, key string) bool
	Clear(ctx context.Context, partition Partition) bool

	Close() error
}

// IsStale reports whether a record stamped at ts is older than threshold at now.
func IsStale(now, ts time.Time, threshold time.Duration) bool {
	return now.Sub(ts) > threshold
}
