package settings

import (
	"fmt"
	"sync"
)

// Store shares one Settings value between the processor and the control API.
// Readers take a snapshot at the start of each pass so an update never
// changes settings halfway through.
type Store struct {
	mu sync.RWMutex
	s  Settings
}

// NewStore creates a store holding a copy of s.
func NewStore(s Settings) *Store {
	return &Store{s: s.Clone()}
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Clone()
}

// Update applies fn to a copy of the current settings and stores the result
// if fn succeeds and the result validates. The store is locked while fn runs.
func (st *Store) Update(fn func(*Settings) error) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.s.Clone()
	if err := fn(&next); err != nil {
		return st.s.Clone(), err
	}
	if err := next.Validate(); err != nil {
		return st.s.Clone(), fmt.Errorf("settings: %w", err)
	}
	st.s = next
	return next.Clone(), nil
}
