package bloom

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Names of the built-in hash algorithms.
const (
	AlgorithmXXHash  = "xxhash"
	AlgorithmMurmur3 = "murmur3"
)

// HashFunc maps an encoded key and a seed to a 64-bit hash. Implementations
// must be deterministic; distinct seeds should behave as independent hash
// functions. Cryptographic strength is not required.
type HashFunc func(key []byte, seed uint64) uint64

var hashFuncs = map[string]HashFunc{
	AlgorithmXXHash:  XXHash,
	AlgorithmMurmur3: Murmur3,
}

// LookupHash returns the built-in hash function registered under name.
func LookupHash(name string) (HashFunc, error) {
	fn, ok := hashFuncs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown hash algorithm %q (want one of %v)", ErrInvalidArgument, name, Algorithms())
	}
	return fn, nil
}

// Algorithms lists the names of the built-in hash functions.
func Algorithms() []string {
	names := make([]string, 0, len(hashFuncs))
	for name := range hashFuncs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// XXHash hashes the key with xxHash64 and decorrelates the digest per seed
// with the SplitMix64 finalizer.
func XXHash(key []byte, seed uint64) uint64 {
	return mix(xxhash.Sum64(key) ^ seed)
}

// Murmur3 hashes the key with 64-bit MurmurHash3 under a 32-bit seed folded
// from both halves of seed.
func Murmur3(key []byte, seed uint64) uint64 {
	return murmur3.Sum64WithSeed(key, uint32(seed)^uint32(seed>>32))
}

// mix scrambles a 64-bit integer using the SplitMix64 finalizer (public
// domain). It is a bijection, so distinct seeds never collapse onto the same
// input.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
