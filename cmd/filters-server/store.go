// store.go implements the sharded in-memory registry of named filters.
//
// Sharding Strategy
// =================
//
// Keys are spread over 256 shards by xxHash, each shard guarding its own map
// with an RWMutex. Two clients working on different keys almost always land
// on different shards and never contend. Within a shard, readers share the
// lock and writers hold it exclusively, which is exactly the external
// discipline a bloom.Filter needs: Contains may run concurrently with other
// Contains calls, never with Put.

package main

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"filters.lopezb.com/internal/filters/bloom"
)

const shardCount = 256

// Entry is a named filter plus the parameters it was created with.
type Entry struct {
	Filter    *bloom.Filter
	ErrorRate float64
	Capacity  uint64

	// Inserted counts Put calls that changed the answer for their item, i.e.
	// items that were not already reported present.
	Inserted uint64
}

// Shard is one independently locked partition of the store.
type Shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Store holds all filters.
type Store struct {
	shards [shardCount]*Shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &Shard{entries: make(map[string]*Entry)}
	}
	return s
}

func (s *Store) getShard(key string) *Shard {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

// View runs fn under the shard's read lock. fn receives nil when the key does
// not exist. fn must not mutate the entry.
func (s *Store) View(key string, fn func(e *Entry) error) error {
	shard := s.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	return fn(shard.entries[key])
}

// Mutate runs fn under the shard's write lock. fn receives the current entry
// (nil when missing) and returns the entry to store. When fn returns an
// error, or a nil entry, the store is left untouched.
func (s *Store) Mutate(key string, fn func(e *Entry) (*Entry, error)) error {
	//
	// DESIGN
	// ------
	//
	// Read-modify-write under one lock acquisition. BF.ADD must check and set
	// bits atomically with respect to other writers, otherwise two clients
	// adding the same new item could both be told it was new, or a reader
	// could observe a half-written set of bits.
	//
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	next, err := fn(shard.entries[key])
	if err != nil {
		return err
	}
	if next != nil {
		shard.entries[key] = next
	}
	return nil
}

// Delete removes a key and reports whether it existed.
func (s *Store) Delete(key string) bool {
	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	_, ok := shard.entries[key]
	delete(shard.entries, key)
	return ok
}

// Len returns the number of filters across all shards.
func (s *Store) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		n += len(shard.entries)
		shard.mu.RUnlock()
	}
	return n
}
