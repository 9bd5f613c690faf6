package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/order"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "flowershop.v1.OrderAdmin"

	getOrderMethod     = "/" + ServiceName + "/GetOrder"
	updateStatusMethod = "/" + ServiceName + "/UpdateStatus"

	defaultActor = "admin-rpc"
)

// OrderService is the part of the order lifecycle exposed over gRPC.
type OrderService interface {
	Detail(ctx context.Context, id string) (*models.Order, []models.OrderStatus, error)
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus, by, note string) (*models.Order, error)
}

type OrderAdminServer interface {
	GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	UpdateStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// OrderAdminServiceDesc describes the admin service without generated code:
// requests and replies are well-known protobuf types.
var OrderAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "UpdateStatus", Handler: updateStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flowershop/v1/order_admin.proto",
}

func getOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderAdminServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getOrderMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderAdminServer).GetOrder(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func updateStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderAdminServer).UpdateStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: updateStatusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderAdminServer).UpdateStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type OrderServer struct {
	orders OrderService
	logger *zap.Logger
	srv    *grpc.Server
	health *health.Server
}

func NewOrderServer(orders OrderService, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		orders: orders,
		logger: logger,
		health: health.NewServer(),
	}

	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	s.srv.RegisterService(&OrderAdminServiceDesc, s)
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return s
}

func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("Order admin gRPC service started", zap.String("address", addr))

	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	return s.srv.Serve(lis)
}

// Stop flips health to NOT_SERVING, then drains in-flight calls.
func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *OrderServer) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	o, next, err := s.orders.Detail(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return orderReply(o, next)
}

func (s *OrderServer) UpdateStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id := fields["id"].GetStringValue()
	to := fields["orderStatus"].GetStringValue()
	if id == "" || to == "" {
		return nil, status.Error(codes.InvalidArgument, "id and orderStatus are required")
	}
	by := fields["by"].GetStringValue()
	if by == "" {
		by = defaultActor
	}

	updated, err := s.orders.UpdateStatus(ctx, id, models.OrderStatus(to), by, fields["note"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("Order status updated over gRPC",
		zap.String("order_id", id),
		zap.String("to", to),
		zap.String("by", by))

	return orderReply(updated, order.AllowedNext(updated.OrderStatus))
}

func orderReply(o *models.Order, next []models.OrderStatus) (*structpb.Struct, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}

	nextValues := make([]interface{}, len(next))
	for i, st := range next {
		nextValues[i] = string(st)
	}

	reply, err := structpb.NewStruct(map[string]interface{}{
		"order":       doc,
		"allowedNext": nextValues,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return reply, nil
}

// toStatus maps the HTTP error taxonomy onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch apperror.StatusOf(err) {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusUnauthorized:
		code = codes.Unauthenticated
	case http.StatusForbidden:
		code = codes.PermissionDenied
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusConflict:
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}
	return status.Error(code, apperror.MessageOf(err))
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if status.Code(err) == codes.Internal {
			logger.Error("gRPC call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("gRPC call", fields...)
		}
		return resp, err
	}
}
