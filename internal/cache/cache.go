// Package cache holds the last-known-good fallback store. Entries are
// opaque byte values keyed by data family; they are overwritten on every
// successful fetch and never deleted.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("cache: entry not found")

// Store is a small persisted key/value store.
type Store interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put replaces the entry stored under key.
	Put(key string, value []byte) error
}

// Load decodes the entry stored under key into v.
func Load(s Store, key string, v any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Save encodes v and stores it under key.
func Save(s Store, key string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.Put(key, raw)
}
