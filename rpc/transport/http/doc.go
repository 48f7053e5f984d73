// Package http carries rpc messages as HTTP request bodies. Every request is
// a POST to /{partitionId} and the response body is the serialized reply.
//
// It is the simplest transport to debug: together with the json serializer
// a member can be queried with curl. It is also the slowest one, since
// every request pays the HTTP overhead.
//
// Key Components:
//
//   - httpClientTransport: Spreads requests round-robin over its endpoints
//     and retries failed requests with backoff. A request body is rebuilt for
//     every attempt.
//
//   - httpServerTransport: Parses the partition id from the path, passes the
//     body to the registered handler and logs every request at debug level.
//
// The client transport is safe for concurrent use.
package http
