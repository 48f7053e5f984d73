// Package cluster provides the partition table: which member owns a partition
// and which members hold its backups.
//
// The table is static. Assigning partitions dynamically, detecting member
// failures and migrating partitions are outside of the scope of dMap's
// mutation core; a Table is handed to a node at construction time instead of
// being looked up from a process-wide registry.
package cluster
