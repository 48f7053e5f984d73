// Package server implements the RPC server of a dMap node.
//
// The server decodes requests received by a transport and hands them to the
// adapter registered for their message type. Adapters translate requests into
// calls on the local node.Node:
//
//   - NewMapServerAdapter: remove, put, update and get of map entries, commit
//     and rollback of transactions, node info.
//
//   - NewLockManagerServerAdapter: acquire and release of key locks.
//
//   - NewBackupServerAdapter: replay of backups sent by the primary of a
//     partition this node replicates.
//
// Every request carries the partition it is addressed to. Requests for a key
// of another partition are rejected with RetCInvalidOperation; requests for a
// partition owned by another member fail in the node with RetCWrongPartition.
//
// Usage Example:
//
//	n, err := node.New(node.Config{Table: table, Dispatcher: dispatcher})
//	if err != nil {
//	  log.Fatal(err)
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  n,
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// With ServerConfig.MetricsEndpoint set, Serve additionally exposes the process
// metrics in the Prometheus text format under /metrics.
//
// Thread Safety:
//
//	Handle is safe for concurrent use. Serve should be called only once.
package server
