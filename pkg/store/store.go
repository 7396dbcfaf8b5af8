// Package store implements ShareStorage: the per-agent keyed map of shares
// that partitions entries into sticky (bootstrap secrets, never
// auto-cleaned) and tagged (scoped to a round or protocol instance, purged
// after every barrier). Grounded on the teacher's own per-party key-value
// habit of storing round artifacts by string key
// (github.com/luxfi/threshold/pkg/protocol.MultiHandler's messages/broadcast
// maps keyed by round+party), generalized here to the single flat map §4.3
// calls for.
package store

import (
	"fmt"
	"strings"

	"github.com/luxfi/pdcop/pkg/shamir"
)

// Info describes the metadata kept alongside a stored Share.
type Info struct {
	Tag    string
	Sticky bool
}

type entry struct {
	share shamir.Share
	info  Info
}

// ShareStorage is the per-agent keyed share store described in spec.md §4.3.
// It is not safe for concurrent use: the engine only ever touches it from
// the owning agent's single execution context.
type ShareStorage struct {
	entries map[string]entry
}

// New returns an empty ShareStorage.
func New() *ShareStorage {
	return &ShareStorage{entries: make(map[string]entry)}
}

// Store inserts or overwrites a tagged (non-sticky) share under key. A tag
// is required for non-sticky entries.
func (s *ShareStorage) Store(key string, sh shamir.Share, tag string) error {
	if tag == "" {
		return fmt.Errorf("store: tag is required for non-sticky key %q", key)
	}
	s.entries[key] = entry{share: sh, info: Info{Tag: tag, Sticky: false}}
	return nil
}

// StoreSticky inserts or overwrites a sticky share under key. Sticky shares
// survive ClearByTag and ClearNonSticky; only ClearAll removes them.
func (s *ShareStorage) StoreSticky(key string, sh shamir.Share) {
	s.entries[key] = entry{share: sh, info: Info{Sticky: true}}
}

// Get returns the share stored under key, if any.
func (s *ShareStorage) Get(key string) (shamir.Share, bool) {
	e, ok := s.entries[key]
	return e.share, ok
}

// MustGet returns the share stored under key, or a descriptive fatal error
// identifying the missing key per spec.md §7's "missing share" taxonomy.
// Callers (MPC primitives, round protocols) should wrap the error with
// their own agent/round/protocol context before propagating it.
func (s *ShareStorage) MustGet(key string) (shamir.Share, error) {
	sh, ok := s.Get(key)
	if !ok {
		return shamir.Share{}, fmt.Errorf("store: missing share for key %q", key)
	}
	return sh, nil
}

// Has reports whether key is present.
func (s *ShareStorage) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// InfoFor returns the metadata for key, if present.
func (s *ShareStorage) InfoFor(key string) (Info, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// ClearByTag removes every non-sticky entry whose tag equals tag, returning
// the number removed. Sticky entries are never touched.
func (s *ShareStorage) ClearByTag(tag string) int {
	n := 0
	for k, e := range s.entries {
		if !e.info.Sticky && e.info.Tag == tag {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// ClearByPattern removes every non-sticky entry whose key contains
// substring, returning the number removed.
func (s *ShareStorage) ClearByPattern(substring string) int {
	n := 0
	for k, e := range s.entries {
		if !e.info.Sticky && strings.Contains(k, substring) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// ClearNonSticky removes every tagged entry regardless of tag, returning the
// number removed. Called by the agent orchestrator after every barrier.
func (s *ShareStorage) ClearNonSticky() int {
	n := 0
	for k, e := range s.entries {
		if !e.info.Sticky {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// ClearAll empties the map, including sticky entries. Called between DCOP
// problem instances during the agent's deep cleanup.
func (s *ShareStorage) ClearAll() {
	s.entries = make(map[string]entry)
}

// Count returns the total number of entries (sticky + tagged).
func (s *ShareStorage) Count() int {
	return len(s.entries)
}

// StickyCount returns the number of sticky entries only; after a barrier
// completes, Count() must equal StickyCount() (spec.md §8 property 12).
func (s *ShareStorage) StickyCount() int {
	n := 0
	for _, e := range s.entries {
		if e.info.Sticky {
			n++
		}
	}
	return n
}
