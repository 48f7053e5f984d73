// Package util provides small building blocks shared by the dMap packages.
//
// The package contains:
//   - functions: FNV-1a hashing and key to partition routing
//   - statistics: distribution statistics and a SizeHistogram used by the Info
//     methods of record stores and nodes
//   - lockfreempsc: a lock-free multi-producer single-consumer queue whose single
//     consumer is the serial executor of a partition
package util
