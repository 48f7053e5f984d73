package codec

import "fmt"

// NewStringCodec creates a codec for string keys and values.
// The serialized form is the raw UTF-8 bytes, which keeps serialized keys
// human-readable in logs and on the wire. []byte objects are accepted as well.
func NewStringCodec() ICodec {
	return &stringCodecImpl{}
}

type stringCodecImpl struct{}

func (c *stringCodecImpl) ToData(obj any) ([]byte, error) {
	switch v := obj.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("string codec: unsupported type %T", obj)
	}
}

func (c *stringCodecImpl) ToObject(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}
