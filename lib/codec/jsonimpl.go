package codec

import (
	"encoding/json"
)

// NewJSONCodec creates a codec using json encoding.
// Numbers are decoded as float64, objects as map[string]any.
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

type jsonCodecImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (c *jsonCodecImpl) ToData(obj any) ([]byte, error) {
	if obj == nil {
		return nil, nil
	}
	return json.Marshal(obj)
}

func (c *jsonCodecImpl) ToObject(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}
