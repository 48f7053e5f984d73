// Package codec provides the serialization codecs used to translate keys and
// values between the serialized form kept in record stores and the
// deserialized form seen by persistence plugins and callers.
//
// Available codecs:
//   - string: raw bytes of string values (default)
//   - json: encoding/json, suitable for structured values
//   - gob: encoding/gob wrapped in an envelope so interface values keep their type
//
// Use FromName to select a codec from configuration.
package codec
