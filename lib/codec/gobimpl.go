package codec

import (
	"bytes"
	"encoding/gob"
)

// NewGOBCodec creates a codec using Go's gob format.
// Custom types must be registered with gob.Register before use.
func NewGOBCodec() ICodec {
	return &gobCodecImpl{}
}

type gobCodecImpl struct{}

// envelope lets gob transmit the concrete type of an interface value
type envelope struct {
	V any
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (c *gobCodecImpl) ToData(obj any) ([]byte, error) {
	if obj == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{V: obj}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *gobCodecImpl) ToObject(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, err
	}
	return env.V, nil
}
