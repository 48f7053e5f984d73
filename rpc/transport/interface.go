package transport

import (
	"context"

	"github.com/ValentinKolb/dMap/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the partition id the request is addressed to and the serialized
// request, and returns the serialized response
type ServerHandleFunc func(ctx context.Context, partitionID uint32, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until Shutdown is called
	// or the listener fails
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting requests and waits for in-flight requests
	// until ctx is done
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for partitionID to the server and returns the
	// response. It gives up when ctx is done.
	Send(ctx context.Context, partitionID uint32, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}

// ClientFactory creates unconnected client transports.
type ClientFactory func() IRPCClientTransport
