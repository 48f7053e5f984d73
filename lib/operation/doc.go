// Package operation implements the single-key mutations of dMap (remove, put
// and update) and their replication.
//
// An Operation is created with New from explicit dependencies (the partition
// table, the partition container, a codec and a BackupDispatcher) and run on
// the executor of the key's partition. Running it
//
//   - verifies that the local node owns the key's partition,
//   - verifies the caller's key lock token,
//   - logs the mutation and answers nil if it is transactional,
//   - otherwise resolves the prior value (record store, then loader),
//     applies the mutation, writes through to the external store when the
//     map has no write delay, and sends a Backup to the partition's replicas,
//   - and finally delivers exactly one Response.
//
// Sync backups are awaited for at most the backup timeout. A timeout does not
// fail the mutation; the response is marked Degraded instead.
package operation
