package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes protobuf messages in the binary wire format. Values
// must implement proto.Message; register the pointer types (e.g. *pb.Event)
// in their families so decode targets are allocated messages.
type Protobuf struct{}

func (Protobuf) Name() string { return "proto" }

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errNotProto(v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Unmarshal(b []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return errNotProto(v)
	}
	return proto.Unmarshal(b, m)
}

func errNotProto(v any) error {
	return fmt.Errorf("%T doesn't implement proto.Message", v)
}
