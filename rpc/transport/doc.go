// Package transport defines the interfaces for moving serialized rpc messages
// between dMap nodes and clients.
//
// Every request is addressed to a partition id. Servers pass the id to their
// handler, which checks that the request belongs to the partition.
//
// Implementations:
//
//   - http: one POST per request, handy for debugging.
//   - tcp and unix: framed protocol on top of the base package with
//     multiplexed requests per connection.
//   - local: in-process transport used by tests and embedded clusters.
package transport
