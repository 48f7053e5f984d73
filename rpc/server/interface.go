package server

import (
	"context"

	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It translates requests into calls on the local node and their results into
// responses.
type IRPCServerAdapter interface {
	// MessageTypes returns the request types the adapter handles
	MessageTypes() []common.MessageType

	// Handle handles a request addressed to partitionID and returns a response.
	// If an error occurs, it should be set in the response
	Handle(ctx context.Context, partitionID uint32, req *common.Message, n *node.Node) (resp *common.Message)
}
