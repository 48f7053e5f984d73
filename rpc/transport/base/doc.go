// Package base implements the framed stream transport shared by the tcp and
// unix packages. Those packages only supply connectors that dial, listen and
// tune sockets; everything else happens here.
//
// Frame format:
//
//	partitionID (4 bytes) | requestID (8 bytes) | length (4 bytes) | payload
//
// The client tags every request with a fresh request id and may have many
// requests in flight on one connection. Responses are matched to their
// callers by id and can arrive in any order.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Protocol specific hooks.
//
//   - clientTransport: Keeps ConnectionsPerEndpoint connections per endpoint
//     and picks them round-robin. A broken connection fails its pending
//     requests and is redialed in the background; sends are retried with
//     backoff up to RetryCount times.
//
//   - serverTransport: Accepts connections and runs a reader per connection.
//     Frames are handled by at most WorkersPerConn goroutines per connection,
//     request buffers come from a sync.Pool of BufferSize byte slices.
//
// Header and payload are written with net.Buffers, so one frame is usually
// one syscall.
package base
