package sysinfopb

import (
	"encoding"
	"fmt"

	grpcencoding "google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// Compile-time guard.
var _ grpcencoding.Codec = Codec{}

// Codec is a gRPC codec for the sysinfo.v1 messages. It reports itself as
// "proto" so the content-subtype on the wire is the standard one, and falls
// back to the protobuf runtime for generated messages such as the health
// service's.
//
// Install it with grpc.ForceServerCodec on servers and grpc.ForceCodec on
// clients.
type Codec struct{}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case encoding.BinaryMarshaler:
		return m.MarshalBinary()
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("sysinfopb: cannot marshal %T", v)
	}
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case encoding.BinaryUnmarshaler:
		return m.UnmarshalBinary(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("sysinfopb: cannot unmarshal into %T", v)
	}
}
