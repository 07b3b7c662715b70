package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/wire"
)

func TestModelInferRoundTrip(t *testing.T) {
	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)
	_, err := mgr.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	gsrv := grpc.NewServer()
	New(mgr).Register(gsrv)
	go gsrv.Serve(lis)
	defer gsrv.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := &inferRequest{
		Model: "simulation",
		Request: wire.Request{
			ID: "r1",
			Inputs: []wire.Tensor{
				{Name: "x", Shape: []int64{1}, Datatype: "FP32", Data: []byte("[1.0]")},
			},
		},
	}
	var resp wire.Response
	err = conn.Invoke(ctx, "/"+serviceName+"/ModelInfer", req, &resp)
	require.NoError(t, err)
	require.Equal(t, "r1", resp.ID)
}
