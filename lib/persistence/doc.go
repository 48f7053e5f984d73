// Package persistence defines the plugin contracts between a map and an
// external system of record, and ships an in-memory implementation.
//
//   - Loader: read path, consulted when a key is missing from a record store
//   - Store: write path, invoked synchronously for maps with a write delay of
//     zero (write-through). Maps with a non-zero write delay leave persistence
//     to a deferred writer and never call the Store from an operation.
//
// Plugins see keys and values in their deserialized form; the conversion is
// done by the map's codec.
package persistence
