package codec

// ICodec converts keys and values between their serialized form (stored in
// record stores and shipped to replicas) and their deserialized form (handed
// to loaders, stores and callers).
//
// Both forms must be equivalent: ToObject(ToData(v)) must equal v for every
// value the codec accepts.
type ICodec interface {
	// ToData serializes an object. A nil object serializes to nil.
	ToData(obj any) ([]byte, error)
	// ToObject deserializes data. Nil data deserializes to nil.
	ToObject(data []byte) (any, error)
}
