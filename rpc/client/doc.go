// Package client implements the RPC clients of a dMap cluster.
//
// Both clients route requests with the static partition table built from
// common.ClientConfig: a request for a key goes to the owner of the key's
// partition. Every member gets its own transport, created by a
// transport.ClientFactory and connected on first use.
//
// Key Components:
//
//   - RPCMapClient: remote access to the maps of the cluster (remove, put,
//     update, get), key locks, transactions and node info.
//
//   - Transaction: collects mutations in the transaction logs of the touched
//     partitions and commits or rolls them back partition by partition.
//
//   - RemoteBackupDispatcher: the operation.BackupDispatcher of a node that
//     ships backups to the replicas of its partitions. Async backups are
//     delivered in order through a queue per replica.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Members:        map[string]string{"a": "10.0.0.1:8080", "b": "10.0.0.2:8080"},
//	  PartitionCount: 271,
//	  TimeoutSecond:  5,
//	  Transport:      common.ClientTransportConfig{RetryCount: 3},
//	}
//
//	c, _ := client.NewRPCMapClient(config, tcp.NewTCPClientTransport, serializer.NewBinarySerializer())
//	defer c.Close()
//
//	c.Put(ctx, "users", []byte("alice"), []byte("admin"), 0)
//	value, found, _ := c.Get(ctx, "users", []byte("alice"))
//
//	ok, token, _ := c.Lock(ctx, "users", []byte("alice"), 30*time.Second)
//	if ok {
//	  tx := c.BeginTransaction(token)
//	  tx.Update(ctx, "users", []byte("alice"), []byte("user"), 0)
//	  tx.Commit(ctx)
//	  c.Unlock(ctx, "users", []byte("alice"), token)
//	}
//
// Thread Safety:
//
//	All clients are safe for concurrent use. A Transaction serializes its own
//	mutations.
package client
