package codec

import "fmt"

// Limit wraps another codec to enforce a maximum allowed payload size at
// Unmarshal time. Marshal is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized/malicious records coming from a
// shared backend or untrusted stream.
type Limit struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Unmarshal. If the payload exceeds MaxDecode, Unmarshal
	// returns an error without invoking Inner.
	MaxDecode int
}

func (c Limit) Name() string                  { return c.Inner.Name() }
func (c Limit) Marshal(v any) ([]byte, error) { return c.Inner.Marshal(v) }
func (c Limit) Unmarshal(b []byte, v any) error {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Unmarshal(b, v)
}
