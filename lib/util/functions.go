package util

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// HashBytes generates a FNV-1a hash value for b with a seed.
// Partition routing uses it with seed 0 so that every node maps a serialized
// key to the same partition.
func HashBytes(b []byte, seed uint64) uint64 {
	hash := uint64(offset64) ^ seed
	for _, c := range b {
		hash ^= uint64(c)
		hash *= prime64
	}
	return hash
}

// PartitionOf maps a serialized key onto one of partitionCount partitions.
func PartitionOf(key []byte, partitionCount uint32) uint32 {
	if partitionCount == 0 {
		return 0
	}
	// shift right by 7 bits to use higher-quality bits for distribution
	return uint32((HashBytes(key, 0) >> 7) % uint64(partitionCount))
}
