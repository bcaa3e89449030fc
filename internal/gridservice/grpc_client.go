package gridservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names served by the grid agent sidecar.
const (
	GrpcServiceName       = "gridassist.v1.GridService"
	methodLoadCase        = "/" + GrpcServiceName + "/LoadCase"
	methodSendMessage     = "/" + GrpcServiceName + "/SendMessage"
	methodListCases       = "/" + GrpcServiceName + "/ListCases"
	grpcHealthServiceName = GrpcServiceName
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotServing               = errors.New("grid service is not serving")
)

// GrpcClient talks to a grid agent sidecar over gRPC. Payloads are
// google.protobuf.Struct values with the same keys as the JSON API.
type GrpcClient struct {
	conn           *grpc.ClientConn
	health         healthpb.HealthClient
	addr           string
	requestTimeout time.Duration
	logger         *slog.Logger
}

// GrpcClientConfig holds configuration for the gRPC client.
type GrpcClientConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended after the defaults; tests use them to dial bufconn.
	DialOptions []grpc.DialOption
}

// DefaultGrpcClientConfig returns default configuration.
func DefaultGrpcClientConfig() GrpcClientConfig {
	return GrpcClientConfig{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   120 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// NewGrpcClient connects to the grid agent and waits until the channel is ready.
func NewGrpcClient(cfg GrpcClientConfig, logger *slog.Logger) (*GrpcClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultGrpcClientConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to grid agent at %s: %w", cfg.Address, err)
	}

	// Fail fast on bad endpoints instead of at the first operator action.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("grid agent at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to grid agent", "address", cfg.Address)

	return &GrpcClient{
		conn:           conn,
		health:         healthpb.NewHealthClient(conn),
		addr:           cfg.Address,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GrpcClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("failed to close gRPC connection", "error", err)
		return err
	}
	return nil
}

// Ping implements Pinger using the standard health service.
func (c *GrpcClient) Ping(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: grpcHealthServiceName})
	if err != nil {
		return classifyGrpc("health", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return unavailable("health", fmt.Errorf("%w: %s", errNotServing, resp.GetStatus()))
	}
	return nil
}

// LoadCase implements Service.
func (c *GrpcClient) LoadCase(ctx context.Context, caseName string) (LoadResult, error) {
	const op = "load case"
	out, err := c.invoke(ctx, op, methodLoadCase, map[string]any{"case_name": caseName})
	if err != nil {
		return LoadResult{}, err
	}
	raw, ok := out["stats"].(map[string]any)
	if !ok || len(raw) == 0 {
		return LoadResult{}, malformed(op, errMissingStats)
	}
	stats, err := decodeStats(raw)
	if err != nil {
		return LoadResult{}, malformed(op, err)
	}
	msg, _ := out["message"].(string)
	return LoadResult{Stats: stats, Message: msg}, nil
}

// SendMessage implements Service.
func (c *GrpcClient) SendMessage(ctx context.Context, text string) (ChatResult, error) {
	const op = "send message"
	out, err := c.invoke(ctx, op, methodSendMessage, map[string]any{"message": text})
	if err != nil {
		return ChatResult{}, err
	}
	reply, ok := out["response"].(string)
	if !ok {
		return ChatResult{}, malformed(op, errEmptyResponse)
	}
	stats, err := decodeOptionalStats(out["stats"])
	if err != nil {
		return ChatResult{}, malformed(op, err)
	}
	return ChatResult{ResponseText: reply, Stats: stats}, nil
}

// ListCases implements CaseLister.
func (c *GrpcClient) ListCases(ctx context.Context) ([]string, error) {
	const op = "list cases"
	out, err := c.invoke(ctx, op, methodListCases, map[string]any{})
	if err != nil {
		return nil, err
	}
	items, _ := out["cases"].([]any)
	cases := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := item.(string)
		if !ok {
			return nil, malformed(op, fmt.Errorf("case id has type %T", item))
		}
		cases = append(cases, id)
	}
	return cases, nil
}

func (c *GrpcClient) invoke(ctx context.Context, op, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		c.logger.Warn("Grid agent call failed", "op", op, "method", method, "error", err)
		return nil, classifyGrpc(op, err)
	}
	return resp.AsMap(), nil
}
