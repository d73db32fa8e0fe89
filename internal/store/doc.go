// Package store provides the best-effort persistent key-value cache.
//
// # Partitions
//
// Records live in four independent partitions:
//
//   - articles: cached article bodies (Article)
//   - milestones: baby development milestones (Milestone)
//   - userData: session record and local accounts (caller-chosen shapes)
//   - imageCache: resolved image metadata (ImageEntry)
//
// Each record carries an id unique within its partition, an opaque payload, and
// a LastUpdated stamp set by the backend on every write.
//
// # Backends
//
// SQLiteStore keeps one table per partition in a single SQLite file:
//
//	PRAGMA journal_mode=WAL;
//	CREATE TABLE IF NOT EXISTS "imageCache" (id TEXT PRIMARY KEY, payload BLOB, last_updated INTEGER);
//
// MemoryStore is the in-memory twin used by unit tests.
//
// # Error Handling
//
// The store backs a cache, not a source of truth. I/O failures are logged and
// surfaced as false, not-found, or an empty slice. Callers never see an error
// from Set, Get, GetAll, Remove, or Clear.
//
// # Typed Access
//
// Bucket[T] binds a partition to its payload type:
//
//	images := store.ImageCache(backend)
//	images.Put(ctx, key, store.ImageEntry{...})
//	rec, ok := images.Get(ctx, key)
package store
