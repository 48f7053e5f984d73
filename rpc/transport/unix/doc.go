// Package unix plugs Unix domain sockets into the stream transport of
// package base. Use it when clients run on the same machine as the member
// they talk to; it skips the TCP/IP stack entirely.
//
// The endpoint is a socket path. A stale socket file left by a crashed
// member is removed before listening.
package unix
