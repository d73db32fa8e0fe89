// Package preload warms the image cache at startup and evicts stale entries.
//
// Start must be called once by the application bootstrap. It resolves the
// critical asset list synchronously, defers the secondary list until the host is
// idle (bounded by a timeout), and runs image cache cleanup immediately and then
// every 24 hours until the context ends.
package preload
