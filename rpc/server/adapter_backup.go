package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dMap/lib/node"
	"github.com/ValentinKolb/dMap/rpc/common"
)

// NewBackupServerAdapter returns the adapter replaying backups sent by the
// primaries of the partitions this node replicates.
func NewBackupServerAdapter() IRPCServerAdapter {
	return &backupServerAdapter{}
}

type backupServerAdapter struct{}

func (adapter *backupServerAdapter) MessageTypes() []common.MessageType {
	return []common.MessageType{common.MsgTBackup}
}

// Handle queues the backup on the partition executor. Async backups are
// acknowledged once queued, so a sender that waits for each acknowledgement
// gets its backups applied in send order.
func (adapter *backupServerAdapter) Handle(ctx context.Context, partitionID uint32, req *common.Message, n *node.Node) *common.Message {
	if n == nil {
		return common.NewErrorResponse(fmt.Errorf("handler: node is nil"))
	}
	return common.NewBackupResponse(n.ApplyBackup(ctx, req.Backup(partitionID), req.Sync))
}
