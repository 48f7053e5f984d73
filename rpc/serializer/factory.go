package serializer

import "fmt"

// FromName returns the serializer registered under name.
func FromName(name string) (IRPCSerializer, error) {
	switch name {
	case "binary":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s. must be one of binary, json, gob", name)
	}
}
