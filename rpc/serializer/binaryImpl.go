package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dMap/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	1 byte MsgType | 2 bytes flags | present fields in flag order
//
// Byte slices and strings are length prefixed (uint32), numbers are big
// endian uint64, Kind is a single byte. Boolean fields are encoded in the
// flags only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasMapName uint16 = 1 << iota
	hasKey
	hasValue
	hasTTL
	hasKind
	hasVersion
	hasTxnID
	hasToken
	hasCount
	hasCode
	hasErr
	hasMeta
	isSync
	isOk
	isDegraded
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	flags := flagsOf(msg)
	w := binWriter{buf: make([]byte, headerSize, sizeBytes(msg, flags))}
	w.buf[0] = byte(msg.MsgType)
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	if flags&hasMapName != 0 {
		w.putBytes([]byte(msg.MapName))
	}
	if flags&hasKey != 0 {
		w.putBytes(msg.Key)
	}
	if flags&hasValue != 0 {
		w.putBytes(msg.Value)
	}
	if flags&hasTTL != 0 {
		w.putUint64(uint64(msg.TTL))
	}
	if flags&hasKind != 0 {
		w.buf = append(w.buf, msg.Kind)
	}
	if flags&hasVersion != 0 {
		w.putUint64(msg.Version)
	}
	if flags&hasTxnID != 0 {
		w.putBytes([]byte(msg.TxnID))
	}
	if flags&hasToken != 0 {
		w.putBytes([]byte(msg.Token))
	}
	if flags&hasCount != 0 {
		w.putUint64(msg.Count)
	}
	if flags&hasCode != 0 {
		w.putUint64(msg.Code)
	}
	if flags&hasErr != 0 {
		w.putBytes([]byte(msg.Err))
	}
	if flags&hasMeta != 0 {
		w.putBytes(msg.Meta)
	}

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	flags := binary.BigEndian.Uint16(data[1:3])
	r := binReader{data: data, pos: headerSize}

	*msg = common.Message{
		MsgType:  common.MessageType(data[0]),
		Sync:     flags&isSync != 0,
		Ok:       flags&isOk != 0,
		Degraded: flags&isDegraded != 0,
	}

	if flags&hasMapName != 0 {
		msg.MapName = string(r.bytes("map name"))
	}
	if flags&hasKey != 0 {
		msg.Key = r.bytes("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	if flags&hasTTL != 0 {
		msg.TTL = int64(r.uint64("ttl"))
	}
	if flags&hasKind != 0 {
		msg.Kind = r.byte("kind")
	}
	if flags&hasVersion != 0 {
		msg.Version = r.uint64("version")
	}
	if flags&hasTxnID != 0 {
		msg.TxnID = string(r.bytes("txn id"))
	}
	if flags&hasToken != 0 {
		msg.Token = string(r.bytes("token"))
	}
	if flags&hasCount != 0 {
		msg.Count = r.uint64("count")
	}
	if flags&hasCode != 0 {
		msg.Code = r.uint64("code")
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("error"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	if r.err != nil {
		return r.err
	}
	if r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// flagsOf computes which fields of msg are encoded
func flagsOf(msg common.Message) uint16 {
	var flags uint16
	set := func(cond bool, flag uint16) {
		if cond {
			flags |= flag
		}
	}
	set(msg.MapName != "", hasMapName)
	set(msg.Key != nil, hasKey)
	set(msg.Value != nil, hasValue)
	set(msg.TTL != 0, hasTTL)
	set(msg.Kind != 0, hasKind)
	set(msg.Version != 0, hasVersion)
	set(msg.TxnID != "", hasTxnID)
	set(msg.Token != "", hasToken)
	set(msg.Count != 0, hasCount)
	set(msg.Code != 0, hasCode)
	set(msg.Err != "", hasErr)
	set(msg.Meta != nil, hasMeta)
	set(msg.Sync, isSync)
	set(msg.Ok, isOk)
	set(msg.Degraded, isDegraded)
	return flags
}

// sizeBytes calculates the total size needed for serialization
func sizeBytes(msg common.Message, flags uint16) int {
	size := headerSize
	lengthPrefixed := map[uint16]int{
		hasMapName: len(msg.MapName),
		hasKey:     len(msg.Key),
		hasValue:   len(msg.Value),
		hasTxnID:   len(msg.TxnID),
		hasToken:   len(msg.Token),
		hasErr:     len(msg.Err),
		hasMeta:    len(msg.Meta),
	}
	for flag, n := range lengthPrefixed {
		if flags&flag != 0 {
			size += 4 + n
		}
	}
	for _, flag := range []uint16{hasTTL, hasVersion, hasCount, hasCode} {
		if flags&flag != 0 {
			size += 8
		}
	}
	if flags&hasKind != 0 {
		size++
	}
	return size
}

type binWriter struct {
	buf []byte
}

func (w *binWriter) putBytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *binWriter) putUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

// binReader reads fields in order and keeps the first error
type binReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

// bytes returns a copy so that the message does not alias the read buffer
func (r *binReader) bytes(field string) []byte {
	if !r.need(4, field+" length") {
		return nil
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	if !r.need(n, field) {
		return nil
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out
}

func (r *binReader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *binReader) byte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}
