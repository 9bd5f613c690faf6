package grpc

import (
	"context"
	"fmt"

	"github.com/example/flowershop/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Discoverer looks up registered instances of a service.
type Discoverer interface {
	Discover(ctx context.Context, serviceName string) ([]*discovery.ServiceInstance, error)
}

// ResolveTarget returns the address of the first registered instance of
// serviceName, or fallback when discovery is unavailable or finds nothing.
func ResolveTarget(ctx context.Context, disc Discoverer, serviceName, fallback string, logger *zap.Logger) string {
	if disc == nil {
		return fallback
	}

	instances, err := disc.Discover(ctx, serviceName)
	if err == nil && len(instances) > 0 {
		target := instances[0].Addr()
		logger.Info("Discovered service", zap.String("service", serviceName), zap.String("address", target))
		return target
	}

	logger.Info("Using default address",
		zap.String("service", serviceName),
		zap.String("address", fallback),
		zap.Error(err))
	return fallback
}

// OrderAdminClient calls the order admin service over a plain connection.
type OrderAdminClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// Dial creates a lazy client connection to target; the first call connects.
func Dial(target string, opts ...grpc.DialOption) (*OrderAdminClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return &OrderAdminClient{conn: conn, cc: conn}, nil
}

func (c *OrderAdminClient) GetOrder(ctx context.Context, id string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getOrderMethod, wrapperspb.String(id), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) UpdateStatus(ctx context.Context, id, orderStatus, by, note string) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"id":          id,
		"orderStatus": orderStatus,
		"by":          by,
		"note":        note,
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, updateStatusMethod, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderAdminClient) Conn() *grpc.ClientConn {
	return c.conn
}

func (c *OrderAdminClient) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("order admin connection close error: %w", err)
	}
	return nil
}
