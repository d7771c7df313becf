package util

import (
	"hash/fnv"
)

// ShardIndex maps key onto one of n shards. The same key always lands on
// the same shard for a given n. n <= 1 always yields 0.
func ShardIndex(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(sum64(key) % uint64(n))
}

// sum64 is 64-bit FNV-1a.
func sum64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
