package serializer

import "github.com/ValentinKolb/dMap/rpc/common"

// IRPCSerializer converts Messages to and from their wire representation.
// Client and server of a cluster must use the same serializer.
type IRPCSerializer interface {
	// Serialize encodes msg. The returned slice is owned by the caller.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg, overwriting all of its fields.
	Deserialize(b []byte, msg *common.Message) error
}
