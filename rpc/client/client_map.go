package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dMap/lib/cluster"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
	"github.com/ValentinKolb/dMap/rpc/serializer"
	"github.com/ValentinKolb/dMap/rpc/transport"
	"golang.org/x/sync/errgroup"
)

// NewRPCMapClient creates a client for the maps of the cluster described by
// config. Requests are routed to the owner of the key's partition; members
// are connected on first use.
//
// Usage:
//
//	c, err := client.NewRPCMapClient(config, tcp.NewTCPClientTransport, serializer.NewBinarySerializer())
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	prior, err := c.Put(ctx, "users", []byte("alice"), []byte("..."), 0)
func NewRPCMapClient(
	config common.ClientConfig,
	newTransport transport.ClientFactory,
	serializer serializer.IRPCSerializer,
) (*RPCMapClient, error) {
	adapter, err := newRPCClientAdapter(config, newTransport, serializer)
	if err != nil {
		return nil, err
	}
	return &RPCMapClient{adapter: adapter}, nil
}

// RPCMapClient is a remote client of a dMap cluster.
//
// Thread-safety: all methods can be called concurrently.
type RPCMapClient struct {
	adapter *rpcClientAdapter
}

// Table returns the partition table used for routing.
func (c *RPCMapClient) Table() *cluster.Table {
	return c.adapter.table
}

// Close closes the connections to all members.
func (c *RPCMapClient) Close() error {
	return c.adapter.close()
}

// --------------------------------------------------------------------------
// Map operations
// --------------------------------------------------------------------------

// Mutate sends m for key of mapName to the key's owner. The returned response
// holds the prior value; errors of the operation are returned as error.
func (c *RPCMapClient) Mutate(ctx context.Context, mapName string, key []byte, m operation.Mutation, opts node.MutateOptions) (operation.Response, error) {
	req, err := mutationRequest(mapName, key, m, opts)
	if err != nil {
		return operation.Response{}, err
	}
	resp, err := c.adapter.invokeOwner(ctx, key, req)
	if err != nil {
		return operation.Response{}, err
	}
	return operation.Response{Value: resp.Value, Found: resp.Ok, Degraded: resp.Degraded}, nil
}

// Remove removes key and returns its prior value.
func (c *RPCMapClient) Remove(ctx context.Context, mapName string, key []byte) (operation.Response, error) {
	return c.Mutate(ctx, mapName, key, operation.Remove{}, node.MutateOptions{})
}

// Put maps key to value and returns the prior value.
func (c *RPCMapClient) Put(ctx context.Context, mapName string, key, value []byte, ttl time.Duration) (operation.Response, error) {
	return c.Mutate(ctx, mapName, key, operation.Put{Value: value, TTL: ttl}, node.MutateOptions{})
}

// Update replaces the value of key if it has one and returns the prior value.
func (c *RPCMapClient) Update(ctx context.Context, mapName string, key, value []byte, ttl time.Duration) (operation.Response, error) {
	return c.Mutate(ctx, mapName, key, operation.Update{Value: value, TTL: ttl}, node.MutateOptions{})
}

// Get returns the value of key.
func (c *RPCMapClient) Get(ctx context.Context, mapName string, key []byte) (value []byte, found bool, err error) {
	resp, err := c.adapter.invokeOwner(ctx, key, common.NewGetRequest(mapName, key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

// --------------------------------------------------------------------------
// Node info
// --------------------------------------------------------------------------

// Info returns the statistics of every member. Members that cannot be reached
// fail the call.
func (c *RPCMapClient) Info(ctx context.Context) (map[cluster.NodeID]node.Info, error) {
	var (
		mu    sync.Mutex
		infos = make(map[cluster.NodeID]node.Info)
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, member := range c.adapter.table.Members() {
		id := member.ID
		g.Go(func() error {
			info, err := c.MemberInfo(ctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			infos[id] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// MemberInfo returns the statistics of member id.
func (c *RPCMapClient) MemberInfo(ctx context.Context, id cluster.NodeID) (node.Info, error) {
	var info node.Info
	resp, err := c.adapter.invoke(ctx, id, 0, common.NewInfoRequest())
	if err != nil {
		return info, fmt.Errorf("info of %s: %w", id, err)
	}
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return info, fmt.Errorf("info of %s: invalid response: %w", id, err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// mutationRequest encodes m as a request message.
func mutationRequest(mapName string, key []byte, m operation.Mutation, opts node.MutateOptions) (*common.Message, error) {
	msgType, err := common.MutationMessageType(m.Kind())
	if err != nil {
		return nil, err
	}

	var (
		value []byte
		ttl   time.Duration
	)
	switch mut := m.(type) {
	case operation.Put:
		value, ttl = mut.Value, mut.TTL
	case operation.Update:
		value, ttl = mut.Value, mut.TTL
	}
	return common.NewMutationRequest(msgType, mapName, key, value, ttl, opts.TxnID, string(opts.Token)), nil
}
