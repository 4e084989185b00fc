package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "minefund.v1.MiningService"

// Messages are google.protobuf.Struct so the service needs no generated stubs
// and is callable from grpcurl or any client with the well-known types.

// MiningServiceServer is the server API for the mining profit service
type MiningServiceServer interface {
	CreateInvestment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	StartMining(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEligibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TransferProfit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListMonthlyBuckets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MiningServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MiningServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MiningServiceDesc describes the service for grpc.Server registration
var MiningServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MiningServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateInvestment",
			Handler: unaryHandler("CreateInvestment", func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.CreateInvestment(ctx, req)
			}),
		},
		{
			MethodName: "StartMining",
			Handler: unaryHandler("StartMining", func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.StartMining(ctx, req)
			}),
		},
		{
			MethodName: "GetEligibility",
			Handler: unaryHandler("GetEligibility", func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetEligibility(ctx, req)
			}),
		},
		{
			MethodName: "TransferProfit",
			Handler: unaryHandler("TransferProfit", func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.TransferProfit(ctx, req)
			}),
		},
		{
			MethodName: "ListMonthlyBuckets",
			Handler: unaryHandler("ListMonthlyBuckets", func(srv MiningServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListMonthlyBuckets(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "minefund/v1/mining.proto",
}

// RegisterMiningServiceServer registers srv on s
func RegisterMiningServiceServer(s grpc.ServiceRegistrar, srv MiningServiceServer) {
	s.RegisterService(&MiningServiceDesc, srv)
}

// Client calls the mining service over an established connection
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient creates a new Client instance
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method with fields as the request message
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
