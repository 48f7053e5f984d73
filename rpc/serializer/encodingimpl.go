package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"sync"

	"github.com/ValentinKolb/dMap/rpc/common"
)

// encodingSerializerImpl adapts a marshal/unmarshal pair of an encoding
// package to IRPCSerializer. It backs the json and gob serializers.
type encodingSerializerImpl struct {
	marshal   func(msg *common.Message) ([]byte, error)
	unmarshal func(b []byte, msg *common.Message) error
}

// NewJSONSerializer creates a serializer using json encoding. Binary fields
// are base64 encoded, which makes it the slowest but most readable option.
func NewJSONSerializer() IRPCSerializer {
	return &encodingSerializerImpl{
		marshal: func(msg *common.Message) ([]byte, error) { return json.Marshal(msg) },
		unmarshal: func(b []byte, msg *common.Message) error {
			*msg = common.Message{}
			return json.Unmarshal(b, msg)
		},
	}
}

// gobBuffers holds the encode buffers of the gob serializer
var gobBuffers = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// NewGOBSerializer creates a serializer using Go's gob format. Every message
// carries its own type description since no stream state is shared between
// requests.
func NewGOBSerializer() IRPCSerializer {
	return &encodingSerializerImpl{
		marshal: func(msg *common.Message) ([]byte, error) {
			buf := gobBuffers.Get().(*bytes.Buffer)
			defer gobBuffers.Put(buf)
			buf.Reset()
			if err := gob.NewEncoder(buf).Encode(msg); err != nil {
				return nil, err
			}
			return bytes.Clone(buf.Bytes()), nil
		},
		unmarshal: func(b []byte, msg *common.Message) error {
			*msg = common.Message{}
			return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (s *encodingSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return s.marshal(&msg)
}

func (s *encodingSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	return s.unmarshal(b, msg)
}
