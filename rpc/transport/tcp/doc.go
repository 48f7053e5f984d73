// Package tcp plugs TCP sockets into the stream transport of package base.
// It only knows how to dial, listen and tune a socket; framing, pooling and
// retries live in base.
//
// The connectors apply the SocketConf and TCPConf of the configuration:
// buffer sizes, TCP_NODELAY, keepalive and linger. Unset values keep the
// operating system defaults.
//
// NewTCPDefaultServerTransport uses 512 KB request buffers and a bounded
// number of concurrent requests per connection.
package tcp
