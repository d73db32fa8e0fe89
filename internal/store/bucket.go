// ABOUTME: Typed, per-partition views over a Backend
// ABOUTME: Binds each partition to its payload shape and handles JSON encoding

package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Article is the payload of the articles partition.
type Article struct {
	Title       string    `json:"title"`
	Markdown    string    `json:"markdown"`
	HTML        string    `json:"html"`
	PublishedAt time.Time `json:"published_at"`
}

// Milestone is the payload of the milestones partition.
type Milestone struct {
	BabyID   string    `json:"baby_id"`
	Type     string    `json:"type"`
	Achieved bool      `json:"achieved"`
	Date     time.Time `json:"date"`
}

// ImageEntry is the payload of the imageCache partition.
type ImageEntry struct {
	Src         string `json:"src"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BlurDataURL string `json:"blur_data_url"`
	CacheKey    string `json:"cache_key"`
}

// TypedRecord is a decoded record.
type TypedRecord[T any] struct {
	ID          string
	Value       T
	LastUpdated time.Time
}

// Bucket is a typed view of one partition.
type Bucket[T any] struct {
	backend   Backend
	partition Partition
	logger    *slog.Logger
}

func newBucket[T any](backend Backend, p Partition) *Bucket[T] {
	return &Bucket[T]{
		backend:   backend,
		partition: p,
		logger:    slog.Default().With("component", "store", "partition", string(p)),
	}
}

// Articles returns the typed view of the articles partition.
func Articles(backend Backend) *Bucket[Article] {
	return newBucket[Article](backend, PartitionArticles)
}

// Milestones returns the typed view of the milestones partition.
func Milestones(backend Backend) *Bucket[Milestone] {
	return newBucket[Milestone](backend, PartitionMilestones)
}

// ImageCache returns the typed view of the imageCache partition.
func ImageCache(backend Backend) *Bucket[ImageEntry] {
	return newBucket[ImageEntry](backend, PartitionImageCache)
}

// UserData returns a typed view of the userData partition. The partition holds
// per-key shapes (session record, accounts), so the caller picks T for the
// keys it owns.
func UserData[T any](backend Backend) *Bucket[T] {
	return newBucket[T](backend, PartitionUserData)
}

// WithLogger returns a copy of the bucket that reports encode and decode
// errors to logger, tagged with the partition.
func (b *Bucket[T]) WithLogger(logger *slog.Logger) *Bucket[T] {
	if logger == nil {
		return b
	}
	cp := *b
	cp.logger = logger.With("partition", string(b.partition))
	return &cp
}

// Partition returns the partition this bucket reads and writes.
func (b *Bucket[T]) Partition() Partition {
	return b.partition
}

// Put encodes v and stores it under key.
func (b *Bucket[T]) Put(ctx context.Context, key string, v T) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("cache encode error", "key", key, "error", err)
		return false
	}
	return b.backend.Set(ctx, b.partition, key, payload)
}

// Get returns the decoded record under key. Undecodable payloads count as missing.
func (b *Bucket[T]) Get(ctx context.Context, key string) (TypedRecord[T], bool) {
	rec, ok := b.backend.Get(ctx, b.partition, key)
	if !ok {
		return TypedRecord[T]{}, false
	}
	return b.decode(rec)
}

// All returns every decodable record in the partition.
func (b *Bucket[T]) All(ctx context.Context) []TypedRecord[T] {
	raw := b.backend.GetAll(ctx, b.partition)
	out := make([]TypedRecord[T], 0, len(raw))
	for _, rec := range raw {
		if typed, ok := b.decode(rec); ok {
			out = append(out, typed)
		}
	}
	return out
}

// Remove deletes key.
func (b *Bucket[T]) Remove(ctx context.Context, key string) bool {
	return b.backend.Remove(ctx, b.partition, key)
}

// Clear deletes every record in the partition.
func (b *Bucket[T]) Clear(ctx context.Context) bool {
	return b.backend.Clear(ctx, b.partition)
}

func (b *Bucket[T]) decode(rec Record) (TypedRecord[T], bool) {
	var v T
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		b.logger.Warn("cache decode error", "key", rec.ID, "error", err)
		return TypedRecord[T]{}, false
	}
	return TypedRecord[T]{ID: rec.ID, Value: v, LastUpdated: rec.LastUpdated}, true
}
