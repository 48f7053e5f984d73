// Package partition holds the per-partition state of a node and the executor
// that serializes all work on it.
//
// A Container bundles the record stores of every map in the partition, the
// partition's transaction log and its key lock table. An Executor runs the
// partition's operations one at a time in arrival order on top of
// util.LockFreeMPSC, which makes a partition the unit of mutual exclusion:
// record stores and the transaction log need no locks of their own.
package partition
