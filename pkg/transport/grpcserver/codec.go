// Package grpcserver exposes the KServe v2 schema over gRPC without a
// protoc-generated stub: messages are plain Go structs (pkg/wire) carried
// by a JSON encoding.Codec registered under the "proto" content-subtype,
// so grpc-go's wire framing, HTTP/2 transport, and interceptor chain are
// all genuinely exercised even though no .proto file was compiled (spec
// §6, DESIGN.md open-question resolution #4).
package grpcserver

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "proto"

// jsonCodec implements grpc/encoding.Codec by marshaling messages as JSON
// instead of protobuf wire format. Registering it under "proto" makes it
// grpc-go's default codec, since no .proto-generated message in this
// module implements proto.Message.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// serviceName is the fully-qualified name clients must dial, standing in
// for the package.Service name a .proto file would normally declare.
const serviceName = "amdinfer.v2.GRPCInferenceService"
