package codec

import "fmt"

// FromName returns the codec registered under name (string, json, gob).
func FromName(name string) (ICodec, error) {
	switch name {
	case "string", "":
		return NewStringCodec(), nil
	case "json":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (expected one of: string, json, gob)", name)
	}
}
