/*
Package node provides Node, the local member of a dMap cluster.

A Node owns, per partition it touched, a partition.Container with the record
stores of all maps and an executor that runs the partition's work one task at
a time. It is the entry point for everything that happens on a member:

  - Remove, Put, Update and Mutate run single-key mutations (see package
    operation) on the executor of the key's partition.
  - Get reads a key, falling back to the map's loader on a miss.
  - BeginTransaction, Commit and Rollback drive the per-partition
    transaction logs.
  - Lock and Unlock manage explicit key locks.
  - ApplyBackup replays backups sent by the primaries of other partitions.

Backups leave a node through an operation.BackupDispatcher. LocalDispatcher
connects nodes of the same process; the rpc/client package provides the
dispatcher for remote members.

Usage:

	dispatcher := node.NewLocalDispatcher()
	table, _ := cluster.SingleNode("node-a", 271)
	n, err := node.New(node.Config{Table: table, Dispatcher: dispatcher})
	if err != nil {
		panic(err)
	}
	dispatcher.Register(n)

	resp, err := n.Remove(ctx, "users", record.Data("alice"))
*/
package node
