package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/rpc/common"
)

// --------------------------------------------------------------------------
// Key locks
// --------------------------------------------------------------------------

// Lock acquires the lock of key in mapName for ttl (zero = until released).
// It returns false if another owner holds the lock.
func (c *RPCMapClient) Lock(ctx context.Context, mapName string, key []byte, ttl time.Duration) (bool, lockmgr.Token, error) {
	resp, err := c.adapter.invokeOwner(ctx, key, common.NewAcquireRequest(mapName, key, ttl))
	if err != nil {
		return false, "", err
	}
	return resp.Ok, lockmgr.Token(resp.Token), nil
}

// Unlock releases the lock of key if token owns it.
func (c *RPCMapClient) Unlock(ctx context.Context, mapName string, key []byte, token lockmgr.Token) (bool, error) {
	resp, err := c.adapter.invokeOwner(ctx, key, common.NewReleaseRequest(mapName, key, string(token)))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}
