// Package codec provides the payload serializers used by upcast's stream
// and store collaborators: CBOR (the default), JSON, Msgpack, Protobuf, a
// size-limiting wrapper, and identity codecs for raw bytes and strings.
package codec

// Codec turns values into bytes and back. Unmarshal targets are non-nil
// pointers. Name is a short lowercase tag used in error and log text.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}
