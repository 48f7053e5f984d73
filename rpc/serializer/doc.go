// Package serializer converts rpc messages to bytes and back. Map operations,
// backups and transaction commands all travel as a common.Message, so one
// serializer instance serves every request of a connection.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A 16 bit flag set names the
//     present fields, boolean fields live in the flags only, so a sync backup
//     acknowledgement is three bytes on the wire.
//
//   - encodingSerializerImpl: Wraps the json and gob packages of the standard
//     library. NewJSONSerializer and NewGOBSerializer only differ in the
//     marshal functions they plug in.
//
// Binary is the default. JSON is handy when debugging with curl against the
// http transport. GOB is kept for completeness and is the slowest of the three.
//
// Thread Safety:
//
//	All serializers are safe for concurrent use. The gob serializer pools
//	its encode buffers, the others keep no state at all.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewBinarySerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
