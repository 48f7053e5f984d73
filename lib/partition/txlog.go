package partition

import (
	"time"

	"github.com/ValentinKolb/dMap/lib/record"
	"github.com/puzpuzpuz/xsync/v3"
)

// LogItem is a mutation recorded by a transaction and replayed on commit.
type LogItem struct {
	MapName string      `json:"map_name"`
	Key     record.Data `json:"key"`
	// Value is nil for removals.
	Value         record.Data   `json:"value"`
	TTL           time.Duration `json:"ttl"`
	Removed       bool          `json:"removed"`
	Transactional bool          `json:"transactional"`
	Kind          Kind          `json:"kind"`
}

// TxLog holds the pending log items of every open transaction touching a
// partition, in append order per transaction.
//
// Thread-safety: the log is mutated only by the partition executor. Reads
// (Items, Transactions) are safe from any goroutine.
type TxLog struct {
	items *xsync.MapOf[string, []LogItem]
}

func NewTxLog() *TxLog {
	return &TxLog{items: xsync.NewMapOf[string, []LogItem]()}
}

// Append records item for txnID.
func (l *TxLog) Append(txnID string, item LogItem) {
	item.Key = item.Key.Clone()
	item.Value = item.Value.Clone()
	l.items.Compute(txnID, func(old []LogItem, _ bool) ([]LogItem, bool) {
		return append(old, item), false
	})
}

// Items returns a copy of the items logged for txnID.
func (l *TxLog) Items(txnID string) []LogItem {
	items, ok := l.items.Load(txnID)
	if !ok {
		return nil
	}
	out := make([]LogItem, len(items))
	copy(out, items)
	return out
}

// Drain removes and returns the items logged for txnID in log order.
// found is false if the transaction has no items in this partition.
func (l *TxLog) Drain(txnID string) (items []LogItem, found bool) {
	return l.items.LoadAndDelete(txnID)
}

// Discard drops the items of txnID and returns how many were dropped.
func (l *TxLog) Discard(txnID string) int {
	items, _ := l.items.LoadAndDelete(txnID)
	return len(items)
}

// Transactions returns the ids of all transactions with pending items.
func (l *TxLog) Transactions() []string {
	var ids []string
	l.items.Range(func(id string, _ []LogItem) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Len returns the number of open transactions.
func (l *TxLog) Len() int {
	return l.items.Size()
}
