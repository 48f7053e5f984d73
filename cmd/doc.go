// Package cmd implements the command-line interface of dMap. It provides a
// hierarchical command structure for running a cluster member and for
// talking to a cluster as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a cluster member (node, backup dispatcher and rpc server)
//   - maps: Map operations (put, update, get, remove, info, perf)
//   - lock: Key lock operations (acquire, release)
//   - txn: Runs map operations in a transaction
//   - util: Shared flag and configuration handling (internal use)
//
// See dmap -help for a list of all commands.
package cmd
