package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	pkgerrors "github.com/amdinfer/inference-server/pkg/errors"
	obslog "github.com/amdinfer/inference-server/pkg/observability/log"
	"github.com/amdinfer/inference-server/pkg/request"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/wire"
)

// inferRequest carries wire.Request plus the target model name, since gRPC
// has no path segment to hold it in. Replies are plain wire.Response values.
type inferRequest struct {
	Model string `json:"model_name"`
	wire.Request
}

// Server implements the KServe v2 gRPC inference surface by hand-wiring a
// grpc.ServiceDesc instead of a protoc-generated stub.
type Server struct {
	manager *endpoint.Manager
	log     *obslog.Logger
}

// New builds a Server bound to manager.
func New(manager *endpoint.Manager) *Server {
	return &Server{manager: manager, log: obslog.New("grpc")}
}

// Register attaches this server's hand-written ServiceDesc to s.
func (srv *Server) Register(s *grpc.Server) {
	s.RegisterService(&serviceDesc, srv)
}

func (srv *Server) modelInfer(ctx context.Context, req *inferRequest) (*wire.Response, error) {
	params := decodeGRPCParameters(req.Parameters)
	inputs, outputs, err := decodeGRPCTensors(req.Inputs, req.Outputs)
	if err != nil {
		return nil, toGRPCStatus(err)
	}

	info, err := srv.manager.GetWorker(req.Model)
	if err != nil {
		return nil, toGRPCStatus(err)
	}

	respCh := make(chan *types.Response, 1)
	adapter := request.New(req.ID, params, inputs, outputs, func(resp *types.Response) {
		respCh <- resp
	})
	if err := info.Submit(adapter); err != nil {
		return nil, toGRPCStatus(err)
	}

	select {
	case resp := <-respCh:
		if resp.IsError() {
			return nil, status.Error(codes.Internal, resp.Error)
		}
		return wire.EncodeResponse(resp), nil
	case <-ctx.Done():
		return nil, status.Error(codes.Canceled, ctx.Err().Error())
	}
}

// decodeGRPCTensors calls wire.DecodeTensor on each tensor, so the
// numeric-array encoding rule (spec §6) is implemented exactly once
// regardless of transport. decodeGRPCParameters applies the same mapping
// as wire's own parameter decoding: JSON numbers become Double values.
func decodeGRPCParameters(m map[string]any) types.Parameters {
	params := types.NewParameters()
	for k, v := range m {
		switch val := v.(type) {
		case bool:
			params.PutBool(k, val)
		case float64:
			params.PutDouble(k, val)
		case string:
			params.PutString(k, val)
		}
	}
	return params
}

func decodeGRPCTensors(in, out []wire.Tensor) ([]types.Tensor, []types.Tensor, error) {
	inputs := make([]types.Tensor, len(in))
	for i, t := range in {
		tensor, err := wire.DecodeTensor(t)
		if err != nil {
			return nil, nil, err
		}
		inputs[i] = tensor
	}
	outputs := make([]types.Tensor, len(out))
	for i, t := range out {
		tensor, err := wire.DecodeTensor(t)
		if err != nil {
			return nil, nil, err
		}
		outputs[i] = tensor
	}
	return inputs, outputs, nil
}

func toGRPCStatus(err error) error {
	code := codes.Internal
	if e, ok := err.(*pkgerrors.Error); ok {
		switch e.Kind {
		case pkgerrors.InvalidArgument:
			code = codes.InvalidArgument
		case pkgerrors.FileNotFound:
			code = codes.NotFound
		case pkgerrors.ConnectionError:
			code = codes.Unavailable
		}
	}
	return status.Error(code, err.Error())
}

func modelInferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(inferRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).modelInfer(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ModelInfer"}
	handler := func(ctx context.Context, r any) (any, error) {
		return srv.(*Server).modelInfer(ctx, r.(*inferRequest))
	}
	return interceptor(ctx, req, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ModelInfer",
			Handler:    modelInferHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "amdinfer/v2/grpc_service.json",
}
