// Package record implements the per-(map, partition) key space of dMap.
//
// A Store maps serialized keys (Data) to Records. It holds references to the
// map's optional persistence plugins and to the map configuration (backup
// counts, write delay, default TTL), but it performs no locking and no
// persistence itself: mutating operations orchestrate both, and the serial
// executor of the owning partition is the only writer.
//
// Every mutation assigns the record a version drawn from a per-store sequence.
// Versions never repeat within a store, which lets replicas discard backups
// that are older than the state they already hold (see Store.ApplyVersioned).
package record
