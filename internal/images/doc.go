// Package images resolves remote image sources into render-ready metadata.
//
// Resolve returns the source URL, dimensions, and a tiny blurred JPEG data URI
// used as a blur-up placeholder. Results are cached in the store's imageCache
// partition for seven days under a key derived from the source and the
// requested rendition (width, height, quality).
//
// # Retry and Fallback
//
// A cache miss triggers up to three fetch attempts. Each attempt is bounded by a
// five second timeout and followed, on failure, by an exponential pause (2s, 4s
// with the default one second base). When every attempt fails, Resolve returns
// fallback metadata that points at the static placeholder asset. Resolve never
// returns an error.
//
// # Preloading and Cleanup
//
// PreloadImages warms the cache for a batch of sources concurrently and
// CleanCache evicts entries older than the expiry window. Both are driven by
// the preload package at startup and on a daily timer.
package images
