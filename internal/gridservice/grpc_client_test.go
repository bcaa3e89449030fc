package gridservice

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type structHandler func(ctx context.Context, in map[string]any) (map[string]any, error)

// gridAgent serves the GridService methods with Struct payloads, the way the
// sidecar registers them.
type gridAgent struct {
	load  structHandler
	chat  structHandler
	cases structHandler
}

func unaryStruct(pick func(*gridAgent) structHandler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		out, err := pick(srv.(*gridAgent))(ctx, in.AsMap())
		if err != nil {
			return nil, err
		}
		return structpb.NewStruct(out)
	}
}

var gridServiceDesc = grpc.ServiceDesc{
	ServiceName: GrpcServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadCase", Handler: unaryStruct(func(a *gridAgent) structHandler { return a.load })},
		{MethodName: "SendMessage", Handler: unaryStruct(func(a *gridAgent) structHandler { return a.chat })},
		{MethodName: "ListCases", Handler: unaryStruct(func(a *gridAgent) structHandler { return a.cases })},
	},
}

func case57Struct() map[string]any {
	return map[string]any{
		"n_buses":              57,
		"total_load_mw":        100.0,
		"total_gen_mw":         105.0,
		"max_line_loading_pct": 82.3,
	}
}

func startGridAgent(t *testing.T, agent *gridAgent, serving healthpb.HealthCheckResponse_ServingStatus) *GrpcClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&gridServiceDesc, agent)
	hs := health.NewServer()
	hs.SetServingStatus(GrpcServiceName, serving)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewGrpcClient(GrpcClientConfig{
		Address:        "passthrough:///bufnet",
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 2 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGrpcClientRoundTrip(t *testing.T) {
	agent := &gridAgent{
		load: func(_ context.Context, in map[string]any) (map[string]any, error) {
			if in["case_name"] != "case57" {
				return nil, status.Errorf(codes.InvalidArgument, "Unknown network name: %v", in["case_name"])
			}
			return map[string]any{"status": "success", "message": "Loaded case57", "stats": case57Struct()}, nil
		},
		chat: func(_ context.Context, in map[string]any) (map[string]any, error) {
			switch in["message"] {
			case "status":
				return map[string]any{"response": "Grid nominal."}, nil
			case "outage":
				return map[string]any{"response": "done", "stats": case57Struct()}, nil
			case "lost":
				return nil, status.Error(codes.DataLoss, "state corrupted")
			default:
				return map[string]any{"stats": map[string]any{}}, nil
			}
		},
		cases: func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{"cases": []any{"case57", "case14"}}, nil
		},
	}
	c := startGridAgent(t, agent, healthpb.HealthCheckResponse_SERVING)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	res, err := c.LoadCase(ctx, "case57")
	require.NoError(t, err)
	assert.Equal(t, 57, res.Stats.BusCount)
	assert.Equal(t, "Loaded case57", res.Message)

	_, err = c.LoadCase(ctx, "case999")
	assert.True(t, errdefs.IsInvalidArgument(err), "unexpected classification: %v", err)

	chat, err := c.SendMessage(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "Grid nominal.", chat.ResponseText)
	assert.Nil(t, chat.Stats)

	chat, err = c.SendMessage(ctx, "outage")
	require.NoError(t, err)
	require.NotNil(t, chat.Stats)

	_, err = c.SendMessage(ctx, "lost")
	assert.True(t, errdefs.IsDataLoss(err), "unexpected classification: %v", err)

	_, err = c.SendMessage(ctx, "mute")
	assert.True(t, errdefs.IsDataLoss(err), "missing response is malformed: %v", err)

	cases, err := c.ListCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"case57", "case14"}, cases)
}

func TestGrpcClientNotServing(t *testing.T) {
	c := startGridAgent(t, &gridAgent{}, healthpb.HealthCheckResponse_NOT_SERVING)

	err := c.Ping(context.Background())
	assert.True(t, errdefs.IsUnavailable(err), "unexpected classification: %v", err)
}

func TestClassifyGrpc(t *testing.T) {
	t.Parallel()

	assert.True(t, errdefs.IsUnavailable(classifyGrpc("op", status.Error(codes.Unavailable, "down"))))
	assert.True(t, errdefs.IsUnavailable(classifyGrpc("op", status.Error(codes.DeadlineExceeded, "slow"))))
	assert.True(t, errdefs.IsInvalidArgument(classifyGrpc("op", status.Error(codes.NotFound, "no such case"))))
	assert.True(t, errdefs.IsInvalidArgument(classifyGrpc("op", status.Error(codes.Internal, "Unknown network name: x"))))
	assert.True(t, errdefs.IsUnknown(classifyGrpc("op", status.Error(codes.Internal, "boom"))))
	assert.ErrorIs(t, classifyGrpc("op", status.Error(codes.Canceled, "bye")), context.Canceled)
}
