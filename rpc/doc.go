// Package rpc connects the members of a dMap cluster and its clients. It
// carries map operations, key locks, transaction commands and the backups a
// primary sends to the replicas of its partitions.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, server and client configuration and the
//     logger setup.
//
//   - transport: network communication with pluggable implementations (TCP,
//     Unix sockets, HTTP and an in-process transport). Every request is
//     addressed to a partition.
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - client: the remote map client and the remote backup dispatcher.
//
//   - server: decodes requests and hands them to the local node.
package rpc
