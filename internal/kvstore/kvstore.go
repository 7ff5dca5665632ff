// Package kvstore provides the persistent key/value substrate that the blob
// cache and snapshot store are built on.
//
// The substrate is a flat string-to-string map with a finite byte capacity
// that is not known to callers at compile time. Writes beyond capacity fail
// with [ErrCapacity]; higher layers are expected to degrade gracefully rather
// than surface the failure.
package kvstore

import "errors"

// ErrCapacity is returned by Set when the write would exceed the store's
// byte capacity.
var ErrCapacity = errors.New("kvstore: capacity exceeded")

// Store is the persistent key/value substrate.
//
// Operations are atomic per key. Concurrent writes to different keys are
// safe; callers must serialize writes to the same key themselves.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent.
	Get(key string) (string, bool, error)
	// Set writes value under key, overwriting any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
	// Keys returns all keys with the given prefix, sorted. An empty prefix
	// returns every key.
	Keys(prefix string) ([]string, error)
	// UsedBytes returns the approximate total byte footprint of all stored
	// keys and values.
	UsedBytes() (int64, error)
}
