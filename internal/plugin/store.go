package plugin

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a per-plugin key/value state store with an optional size
// ceiling. Values must be JSON-serializable; size accounting serializes the
// store's entire content on every write and compares it against the
// ceiling.
//
// Store lifetime equals scope lifetime: no expiry, no persistence.
type Store struct {
	mu      sync.RWMutex
	values  map[string]any
	maxSize int // bytes; 0 = unbounded
}

// NewStore creates a state store. maxSize of zero means unbounded.
func NewStore(maxSize int) *Store {
	return &Store{
		values:  make(map[string]any),
		maxSize: maxSize,
	}
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

// Set writes a value for key. If the store's total serialized size after
// the write would exceed the ceiling, Set fails with ErrStateSizeExceeded
// and the write does not apply: the prior value for key is preserved.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSize > 0 {
		size, err := s.sizeWith(key, value)
		if err != nil {
			return err
		}
		if size > s.maxSize {
			return fmt.Errorf("%w: writing %q would make the store %d bytes (limit %d)",
				ErrStateSizeExceeded, key, size, s.maxSize)
		}
	}

	s.values[key] = value
	return nil
}

// Use returns the current value for key, seeding it with initial when
// absent, together with a setter bound to that key. Seeding goes through
// the same ceiling check as Set.
func (s *Store) Use(key string, initial any) (any, func(any) error, error) {
	set := func(v any) error { return s.Set(key, v) }

	if v, ok := s.Get(key); ok {
		return v, set, nil
	}
	if err := s.Set(key, initial); err != nil {
		return nil, nil, err
	}
	return initial, set, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Size returns the store's current total serialized size in bytes.
func (s *Store) Size() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.values)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize state: %w", err)
	}
	return len(data), nil
}

// Clear removes all stored values.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any)
}

// sizeWith returns the serialized size of the store with value written at
// key, without mutating the store. Caller must hold s.mu.
func (s *Store) sizeWith(key string, value any) (int, error) {
	candidate := make(map[string]any, len(s.values)+1)
	for k, v := range s.values {
		candidate[k] = v
	}
	candidate[key] = value

	data, err := json.Marshal(candidate)
	if err != nil {
		return 0, fmt.Errorf("state value for %q is not serializable: %w", key, err)
	}
	return len(data), nil
}
