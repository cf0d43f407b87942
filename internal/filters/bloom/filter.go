// Package bloom implements a classic fixed-size Bloom filter.
//
// A Bloom filter is a probabilistic data structure that answers "is this item
// in the set?" with either *definitely not* or *probably yes*. It never
// produces false negatives: once an item is inserted, every later query for it
// returns true. It may produce false positives, at a rate controlled by the
// size of the bit array and the number of hash functions.
//
// The typical use is as a cheap pre-filter in front of an expensive exact
// lookup (a disk read, a network round trip): a negative answer lets the
// caller skip the lookup entirely.
//
// Sizing
// ======
//
// A filter is configured by two numbers: the target false positive rate p and
// the expected number of items n. From these we derive:
//
//	k = ceil(-log2(p))           number of hash functions
//	m = floor(n * 14.4 * k)      number of bits
//
// The capacity factor 14.4 deliberately over-provisions memory compared with
// the textbook 1.44 bits per item per hash. At n insertions the theoretical
// false positive rate is (1 - e^(-kn/m))^k, which for p = 0.1 is roughly
// 2e-5 rather than 0.1. See ExpectedFalsePositiveRate.
//
// The Algorithm
// =============
//
// Each filter owns k seeds drawn at construction time. An item is first
// encoded to bytes (see Hashable), then for every seed s_i the configured
// HashFunc produces h_i = hash(key, s_i) and bit h_i mod m is addressed:
//
//	Put:      set every addressed bit.
//	Contains: report true iff every addressed bit is set.
//
// Because the seeds never change, the sequence of addressed bits for a given
// item is stable for the lifetime of the filter, which is what makes Put and
// Contains agree.
//
// Concurrency
// ===========
//
// A Filter is not safe for concurrent mutation. Concurrent Contains calls are
// safe as long as no Put runs at the same time. Callers that share a filter
// between goroutines must provide their own locking (the filters-server store
// uses one RWMutex per shard).
package bloom

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// ErrInvalidArgument is returned when a filter cannot be built from the
// requested parameters.
var ErrInvalidArgument = errors.New("bloom: invalid argument")

// Filter is a fixed-size Bloom filter.
type Filter struct {
	hashCount uint16
	bitCount  uint

	// bits is never resized and bits are never cleared.
	bits *bitset.BitSet

	// seeds holds one seed per hash function, fixed at construction.
	seeds []uint64

	hash      HashFunc
	algorithm string
}

type options struct {
	seeded    bool
	seed      uint64
	hash      HashFunc
	algorithm string
}

// Option customizes a Filter at construction time.
type Option func(*options) error

// WithSeed makes seed generation reproducible. Two filters built with the
// same seed, rate and capacity address exactly the same bits for every item.
// Without it the seeds are random and differ between runs.
func WithSeed(seed uint64) Option {
	return func(o *options) error {
		o.seeded = true
		o.seed = seed
		return nil
	}
}

// WithHash sets a custom hash function. The name is reported by Algorithm.
func WithHash(name string, fn HashFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return fmt.Errorf("%w: nil hash function", ErrInvalidArgument)
		}
		o.hash = fn
		o.algorithm = name
		return nil
	}
}

// WithAlgorithm selects one of the built-in hash algorithms by name
// ("xxhash" or "murmur3").
func WithAlgorithm(name string) Option {
	return func(o *options) error {
		fn, err := LookupHash(name)
		if err != nil {
			return err
		}
		o.hash = fn
		o.algorithm = name
		return nil
	}
}

// New creates an empty filter sized for expectedItemCount items at the given
// target false positive rate. It fails with ErrInvalidArgument if the rate is
// not in the open interval (0, 1).
func New(falsePositiveRate float64, expectedItemCount uint64, opts ...Option) (*Filter, error) {
	hashCount, bitCount, err := EstimateParameters(falsePositiveRate, expectedItemCount)
	if err != nil {
		return nil, err
	}

	o := options{hash: XXHash, algorithm: AlgorithmXXHash}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	// bitset.New returns an empty set when the allocation fails.
	bits := bitset.New(bitCount)
	if bits.Len() != bitCount {
		return nil, fmt.Errorf("%w: cannot allocate %d bits", ErrInvalidArgument, bitCount)
	}

	return &Filter{
		hashCount: hashCount,
		bitCount:  bitCount,
		bits:      bits,
		seeds:     newSeeds(int(hashCount), o),
		hash:      o.hash,
		algorithm: o.algorithm,
	}, nil
}

// newSeeds draws n seeds. Unseeded filters use the runtime-seeded global
// generator; seeded ones use a private PCG stream.
func newSeeds(n int, o options) []uint64 {
	next := rand.Uint64
	if o.seeded {
		next = rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15)).Uint64
	}

	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = next()
	}
	return seeds
}

// HashCount returns the number of hash functions consulted per operation.
func (f *Filter) HashCount() uint16 {
	return f.hashCount
}

// BitCount returns the size of the bit array.
func (f *Filter) BitCount() uint {
	return f.bitCount
}

// Algorithm returns the name of the hash algorithm.
func (f *Filter) Algorithm() string {
	return f.algorithm
}

// Seeds returns a copy of the per-hash seeds.
func (f *Filter) Seeds() []uint64 {
	return slices.Clone(f.seeds)
}

// SetBits returns the number of bits currently set.
func (f *Filter) SetBits() uint {
	return f.bits.Count()
}

// FillRatio returns the fraction of bits currently set.
func (f *Filter) FillRatio() float64 {
	return float64(f.bits.Count()) / float64(f.bitCount)
}

// EstimatedFalsePositiveRate estimates the current false positive rate from
// the fill ratio: a random absent item is reported present when all of its k
// bits happen to be set.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	fill := f.FillRatio()
	rate := 1.0
	for i := uint16(0); i < f.hashCount; i++ {
		rate *= fill
	}
	return rate
}

// Put inserts v. Inserting the same value again has no further effect.
func (f *Filter) Put(v Hashable) {
	f.put(v.AppendKey(nil))
}

// PutBytes inserts a raw byte key.
func (f *Filter) PutBytes(b []byte) {
	f.put(b)
}

// PutString inserts a string key.
func (f *Filter) PutString(s string) {
	f.put([]byte(s))
}

func (f *Filter) put(key []byte) {
	for idx := range f.indexes(key) {
		f.bits.Set(idx)
	}
}

// Contains reports whether v may have been inserted. A false result is
// definite; a true result is subject to the false positive rate.
func (f *Filter) Contains(v Hashable) bool {
	return f.contains(v.AppendKey(nil))
}

// ContainsBytes is Contains for a raw byte key.
func (f *Filter) ContainsBytes(b []byte) bool {
	return f.contains(b)
}

// ContainsString is Contains for a string key.
func (f *Filter) ContainsString(s string) bool {
	return f.contains([]byte(s))
}

func (f *Filter) contains(key []byte) bool {
	// Negative lookups are the common case, so stop at the first unset bit.
	for idx := range f.indexes(key) {
		if !f.bits.Test(idx) {
			return false
		}
	}
	return true
}

// Indexes returns the bit positions addressed by v, in seed order. The
// sequence is lazy and is the same on every call for the same filter and value.
func (f *Filter) Indexes(v Hashable) iter.Seq[uint] {
	return f.indexes(v.AppendKey(nil))
}

func (f *Filter) indexes(key []byte) iter.Seq[uint] {
	return func(yield func(uint) bool) {
		m := uint64(f.bitCount)
		for _, seed := range f.seeds {
			if !yield(uint(f.hash(key, seed) % m)) {
				return
			}
		}
	}
}
