// Package common provides the data structures shared by the rpc client and
// server of dMap.
//
// Key Components:
//
//   - Message: the single request/response structure of the rpc protocol.
//     It carries map operations (remove, put, update, get), backups replayed
//     on replicas, transaction commands and key lock operations. Errors travel
//     as an operation.RetCode plus message so that the receiver can rebuild a
//     typed *operation.Error (see Message.AsError).
//
//   - ServerConfig: configuration of a node, including its id, the static
//     member list, the partition count, the per-map backup settings and the
//     transport settings. ServerConfig.Table builds the partition table.
//
//   - ClientConfig: configuration of a client. Clients build a partition
//     table without a local member and send each request to the owner of the
//     key's partition.
//
//   - Logger: custom logging implementation that plugs into dragonboat's
//     logger registry and writes "LEVEL | name | message" lines.
package common
