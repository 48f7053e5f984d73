package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/lockmgr"
	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/lib/operation"
	"github.com/ValentinKolb/dMap/rpc/common"
)

// NewMapServerAdapter returns the adapter for map operations, transactions and
// node info.
func NewMapServerAdapter() IRPCServerAdapter {
	return &mapServerAdapter{}
}

type mapServerAdapter struct{}

func (adapter *mapServerAdapter) MessageTypes() []common.MessageType {
	return []common.MessageType{
		common.MsgTMapRemove,
		common.MsgTMapPut,
		common.MsgTMapUpdate,
		common.MsgTMapGet,
		common.MsgTTxnCommit,
		common.MsgTTxnRollback,
		common.MsgTInfo,
	}
}

func (adapter *mapServerAdapter) Handle(ctx context.Context, partitionID uint32, req *common.Message, n *node.Node) *common.Message {
	if n == nil {
		return common.NewErrorResponse(fmt.Errorf("handler: node is nil"))
	}

	switch req.MsgType {
	case common.MsgTMapRemove, common.MsgTMapPut, common.MsgTMapUpdate:
		kind, _ := req.MsgType.MutationKind()
		m, err := operation.NewMutation(kind, req.Value, req.TTLDuration())
		if err != nil {
			return common.NewMutationResponse(req.MsgType, nil, false, false, err)
		}
		resp, err := n.Mutate(ctx, req.MapName, req.Key, m, node.MutateOptions{
			TxnID: req.TxnID,
			Token: lockmgr.Token(req.Token),
		})
		if err != nil {
			return common.NewMutationResponse(req.MsgType, nil, false, false, err)
		}
		return common.NewMutationResponse(req.MsgType, resp.Value, resp.Found, resp.Degraded, resp.Err)
	case common.MsgTMapGet:
		val, ok, err := n.Get(ctx, req.MapName, req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTTxnCommit:
		count, err := n.Commit(ctx, req.TxnID, partitionID, lockmgr.Token(req.Token))
		return common.NewTxnResponse(req.MsgType, count, err)
	case common.MsgTTxnRollback:
		count, err := n.Rollback(ctx, req.TxnID, partitionID)
		return common.NewTxnResponse(req.MsgType, count, err)
	case common.MsgTInfo:
		meta, err := json.Marshal(n.Info())
		return common.NewInfoResponse(meta, err)
	default:
		return common.NewErrorResponse(operation.NewError(operation.RetCInvalidOperation,
			fmt.Sprintf("RPC MapAdapter - Unsupported message type: %s", req.MsgType)))
	}
}
