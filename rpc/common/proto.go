package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/dMap/lib/operation"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	MapName string `json:"map,omitempty"` // Used for: all map, backup and lock operations
	Key     []byte `json:"key,omitempty"` // Used for: all map, backup and lock operations

	// Payload
	Value   []byte `json:"value,omitempty"`   // Used for: Put, Update, Backup (request), Get, Remove, Put (response)
	TTL     int64  `json:"ttl,omitempty"`     // Nanoseconds. Used for: Put, Update, Backup, Acquire
	Kind    uint8  `json:"kind,omitempty"`    // Used for: Backup (mutation kind)
	Version uint64 `json:"version,omitempty"` // Used for: Backup
	Sync    bool   `json:"sync,omitempty"`    // Used for: Backup

	// Transactions and locks
	TxnID string `json:"txn,omitempty"`   // Used for: map operations inside a transaction, Commit, Rollback
	Token string `json:"token,omitempty"` // Used for: map operations, Commit, Release (request), Acquire (response)

	// Response only fields
	Ok       bool   `json:"ok,omitempty"`       // Used for: Get, Remove, Put, Update, Acquire, Release responses
	Degraded bool   `json:"degraded,omitempty"` // Set when sync backups did not acknowledge in time
	Count    uint64 `json:"count,omitempty"`    // Used for: Commit, Rollback responses
	Code     uint64 `json:"code,omitempty"`     // operation.RetCode of Err
	Err      string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info (response, JSON encoded node.Info)
}

// TTLDuration returns the TTL field as a duration.
func (m *Message) TTLDuration() time.Duration {
	return time.Duration(m.TTL)
}

// AsError reconstructs the error carried by a response, nil if there is none.
func (m *Message) AsError() error {
	if m.Err == "" && m.Code == uint64(operation.RetCSuccess) {
		return nil
	}
	code := operation.RetCode(m.Code)
	if code == operation.RetCSuccess {
		code = operation.RetCInternalError
	}
	return operation.NewError(code, m.Err)
}

// setErr stores err on the message. The message of an *operation.Error is
// sent without its prefix so that the receiver can rebuild it.
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	m.Code = uint64(operation.CodeOf(err))
	if opErr, ok := err.(*operation.Error); ok {
		m.Err = opErr.Msg
		if opErr.Cause != nil {
			m.Err = fmt.Sprintf("%s: %v", opErr.Msg, opErr.Cause)
		}
		return m
	}
	m.Err = err.Error()
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewMutationRequest creates a Remove, Put or Update request.
func NewMutationRequest(msgType MessageType, mapName string, key, value []byte, ttl time.Duration, txnID, token string) *Message {
	return &Message{
		MsgType: msgType,
		MapName: mapName,
		Key:     key,
		Value:   value,
		TTL:     int64(ttl),
		TxnID:   txnID,
		Token:   token,
	}
}

// NewMutationResponse creates the response of a Remove, Put or Update
// request. value is the prior value of the key.
func NewMutationResponse(msgType MessageType, value []byte, found, degraded bool, err error) *Message {
	msg := &Message{
		MsgType:  msgType,
		Value:    value,
		Ok:       found,
		Degraded: degraded,
	}
	return msg.setErr(err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(mapName string, key []byte) *Message {
	return &Message{
		MsgType: MsgTMapGet,
		MapName: mapName,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTMapGet,
		Ok:      ok,
		Value:   value,
	}
	return msg.setErr(err)
}

// NewBackupRequest creates a request replaying b on a replica.
func NewBackupRequest(b operation.Backup, sync bool) *Message {
	return &Message{
		MsgType: MsgTBackup,
		MapName: b.MapName,
		Key:     b.Key,
		Value:   b.Value,
		TTL:     int64(b.TTL),
		Kind:    uint8(b.Kind),
		Version: b.Version,
		Sync:    sync,
	}
}

// Backup converts a backup request back into an operation.Backup.
func (m *Message) Backup(partitionID uint32) operation.Backup {
	return operation.Backup{
		MapName:     m.MapName,
		PartitionID: partitionID,
		Key:         m.Key,
		Value:       m.Value,
		TTL:         m.TTLDuration(),
		Version:     m.Version,
		Kind:        operation.Kind(m.Kind),
	}
}

// NewBackupResponse creates a new Backup response
func NewBackupResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTBackup,
	}
	return msg.setErr(err)
}

// NewCommitRequest creates a new Commit request
func NewCommitRequest(txnID, token string) *Message {
	return &Message{
		MsgType: MsgTTxnCommit,
		TxnID:   txnID,
		Token:   token,
	}
}

// NewRollbackRequest creates a new Rollback request
func NewRollbackRequest(txnID string) *Message {
	return &Message{
		MsgType: MsgTTxnRollback,
		TxnID:   txnID,
	}
}

// NewTxnResponse creates a Commit or Rollback response. count is the number
// of applied or dropped items.
func NewTxnResponse(msgType MessageType, count int, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Count:   uint64(count),
	}
	return msg.setErr(err)
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(mapName string, key []byte, ttl time.Duration) *Message {
	return &Message{
		MsgType: MsgTLCKAcquire,
		MapName: mapName,
		Key:     key,
		TTL:     int64(ttl),
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, token string, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKAcquire,
		Ok:      ok,
		Token:   token,
	}
	return msg.setErr(err)
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(mapName string, key []byte, token string) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		MapName: mapName,
		Key:     key,
		Token:   token,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKRelease,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
		Meta:    meta,
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTError,
	}
	msg.setErr(err)
	if msg.Code == uint64(operation.RetCSuccess) {
		msg.Code = uint64(operation.RetCInternalError)
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:     "success",
	MsgTError:       "error",
	MsgTMapRemove:   "remove",
	MsgTMapPut:      "put",
	MsgTMapUpdate:   "update",
	MsgTMapGet:      "get",
	MsgTBackup:      "backup",
	MsgTTxnCommit:   "commit",
	MsgTTxnRollback: "rollback",
	MsgTLCKAcquire:  "acquire",
	MsgTLCKRelease:  "release",
	MsgTInfo:        "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseMessageType is the inverse of MessageType.String.
func ParseMessageType(s string) (MessageType, error) {
	for t, name := range messageTypeNames {
		if name == s {
			return t, nil
		}
	}
	return MsgTUnknown, fmt.Errorf("unknown message type: %s", s)
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MutationMessageType returns the message type carrying a mutation of kind.
func MutationMessageType(kind operation.Kind) (MessageType, error) {
	switch kind {
	case operation.KindRemove:
		return MsgTMapRemove, nil
	case operation.KindPut:
		return MsgTMapPut, nil
	case operation.KindUpdate:
		return MsgTMapUpdate, nil
	default:
		return MsgTUnknown, fmt.Errorf("no message type for mutation kind %s", kind)
	}
}

// MutationKind is the inverse of MutationMessageType.
func (t MessageType) MutationKind() (operation.Kind, bool) {
	switch t {
	case MsgTMapRemove:
		return operation.KindRemove, true
	case MsgTMapPut:
		return operation.KindPut, true
	case MsgTMapUpdate:
		return operation.KindUpdate, true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Map operations

	MsgTMapRemove // Remove a key
	MsgTMapPut    // Map a key to a value
	MsgTMapUpdate // Replace the value of a mapped key
	MsgTMapGet    // Read a value by key

	// Replication

	MsgTBackup // Replay a backup on a replica

	// Transactions

	MsgTTxnCommit   // Commit the transaction log of a partition
	MsgTTxnRollback // Drop the transaction log of a partition

	// Key lock operations

	MsgTLCKAcquire // Acquire a key lock
	MsgTLCKRelease // Release a key lock

	// Node operations

	MsgTInfo // Node statistics
)
