package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
)

func NewLockManagerServerAdapter() IRPCServerAdapter {
	return &lockMgrServerAdapter{}
}

type lockMgrServerAdapter struct{}

func (adapter *lockMgrServerAdapter) MessageTypes() []common.MessageType {
	return []common.MessageType{common.MsgTLCKAcquire, common.MsgTLCKRelease}
}

func (adapter *lockMgrServerAdapter) Handle(_ context.Context, _ uint32, req *common.Message, n *node.Node) (resp *common.Message) {
	if n == nil {
		return common.NewErrorResponse(fmt.Errorf("handler: node is nil"))
	}

	switch req.MsgType {
	case common.MsgTLCKAcquire:
		ok, token, err := n.Lock(req.MapName, req.Key, req.TTLDuration())
		return common.NewAcquireResponse(ok, string(token), err)
	case common.MsgTLCKRelease:
		ok, err := n.Unlock(req.MapName, req.Key, lockmgr.Token(req.Token))
		return common.NewReleaseResponse(ok, err)
	default:
		return common.NewErrorResponse(operation.NewError(operation.RetCInvalidOperation,
			fmt.Sprintf("RPC LockManagerAdapter - Unsupported message type: %s", req.MsgType)))
	}
}
