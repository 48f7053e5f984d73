package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data needed by an RPC client: the partition
// table used for routing and one transport per cluster member.
// Used by the RPCMapClient and the RemoteBackupDispatcher with composition pattern
type rpcClientAdapter struct {
	config       common.ClientConfig
	table        *cluster.Table
	newTransport transport.ClientFactory
	serializer   serializer.IRPCSerializer

	mu         sync.Mutex
	transports map[cluster.NodeID]transport.IRPCClientTransport
	closed     bool
}

func newRPCClientAdapter(config common.ClientConfig, newTransport transport.ClientFactory, serializer serializer.IRPCSerializer) (*rpcClientAdapter, error) {
	table, err := config.Table()
	if err != nil {
		return nil, err
	}
	if newTransport == nil || serializer == nil {
		return nil, fmt.Errorf("transport factory and serializer are required")
	}
	return &rpcClientAdapter{
		config:       config,
		table:        table,
		newTransport: newTransport,
		serializer:   serializer,
		transports:   make(map[cluster.NodeID]transport.IRPCClientTransport),
	}, nil
}

// transport returns the connected transport of member id. Members are
// connected on first use; a failed connect is retried by the next request.
func (a *rpcClientAdapter) transport(id cluster.NodeID) (transport.IRPCClientTransport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("client is closed")
	}
	if t, ok := a.transports[id]; ok {
		return t, nil
	}
	member, ok := a.table.Member(id)
	if !ok {
		return nil, fmt.Errorf("unknown member %s", id)
	}

	t := a.newTransport()
	if err := t.Connect(a.config.ForEndpoint(member.Address)); err != nil {
		return nil, fmt.Errorf("failed to connect to %s (%s): %w", id, member.Address, err)
	}
	a.transports[id] = t
	Logger.Debugf("connected to member %s at %s", id, member.Address)
	return t, nil
}

// invoke sends req for partitionID to member target.
func (a *rpcClientAdapter) invoke(ctx context.Context, target cluster.NodeID, partitionID uint32, req *common.Message) (*common.Message, error) {
	t, err := a.transport(target)
	if err != nil {
		return nil, err
	}
	return invokeRPCRequest(ctx, partitionID, req, t, a.serializer)
}

// invokeOwner sends req to the owner of the partition of key.
func (a *rpcClientAdapter) invokeOwner(ctx context.Context, key []byte, req *common.Message) (*common.Message, error) {
	pid := a.table.PartitionOf(key)
	return a.invoke(ctx, a.table.Owner(pid), pid, req)
}

// close closes all transports. Further requests fail.
func (a *rpcClientAdapter) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	var firstErr error
	for id, t := range a.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close transport to %s: %w", id, err)
		}
	}
	a.transports = nil
	return firstErr
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a partition ID, a request message, a transport layer and a serializer as parameters
// It returns the response message and the error carried by it, if any
// This method also checks if the type of the response is the expected type
func invokeRPCRequest(ctx context.Context, partitionID uint32, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(ctx, partitionID, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC client - invalid response: %w", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError {
		return nil, resp.AsError()
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, resp.AsError()
}
