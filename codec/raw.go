package codec

import "fmt"

// Bytes is an identity codec for []byte values. Marshal returns the input
// unchanged; Unmarshal requires a *[]byte target and aliases the input.
// Useful when payloads are already opaque bytes and only the header framing
// and dispatch matter.
type Bytes struct{}

func (Bytes) Name() string { return "bytes" }

func (Bytes) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("bytes codec: %T is not []byte", v)
	}
	return b, nil
}

func (Bytes) Unmarshal(b []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("bytes codec: %T is not *[]byte", v)
	}
	*p = b
	return nil
}

// String is a trivial codec for Go string values. By convention this
// assumes UTF-8 and performs no validation.
type String struct{}

func (String) Name() string { return "string" }

func (String) Marshal(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("string codec: %T is not string", v)
	}
	return []byte(s), nil
}

func (String) Unmarshal(b []byte, v any) error {
	p, ok := v.(*string)
	if !ok {
		return fmt.Errorf("string codec: %T is not *string", v)
	}
	*p = string(b)
	return nil
}
