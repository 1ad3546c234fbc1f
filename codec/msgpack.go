package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5. The zero value is
// ready to use.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs
// JSON. Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

func (Msgpack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack) Unmarshal(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
