package sysinfopb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Fully-qualified method names.
const (
	SystemInfoService_GetSystemInfo_FullMethodName    = "/sysinfo.v1.SystemInfoService/GetSystemInfo"
	SystemInfoService_StreamSystemInfo_FullMethodName = "/sysinfo.v1.SystemInfoService/StreamSystemInfo"
)

// SystemInfoServiceClient is the client API for SystemInfoService.
type SystemInfoServiceClient interface {
	GetSystemInfo(ctx context.Context, in *SystemInfoRequest, opts ...grpc.CallOption) (*SystemInfoResponse, error)
	StreamSystemInfo(ctx context.Context, in *SystemInfoRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SystemInfoResponse], error)
}

type systemInfoServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSystemInfoServiceClient wraps a connection. The connection must use
// Codec, e.g. via grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})).
func NewSystemInfoServiceClient(cc grpc.ClientConnInterface) SystemInfoServiceClient {
	return &systemInfoServiceClient{cc}
}

func (c *systemInfoServiceClient) GetSystemInfo(ctx context.Context, in *SystemInfoRequest, opts ...grpc.CallOption) (*SystemInfoResponse, error) {
	out := new(SystemInfoResponse)
	if err := c.cc.Invoke(ctx, SystemInfoService_GetSystemInfo_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *systemInfoServiceClient) StreamSystemInfo(ctx context.Context, in *SystemInfoRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[SystemInfoResponse], error) {
	stream, err := c.cc.NewStream(ctx, &SystemInfoService_ServiceDesc.Streams[0], SystemInfoService_StreamSystemInfo_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[SystemInfoRequest, SystemInfoResponse]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SystemInfoService_StreamSystemInfoServer is the server side of StreamSystemInfo.
type SystemInfoService_StreamSystemInfoServer = grpc.ServerStreamingServer[SystemInfoResponse]

// SystemInfoServiceServer is the server API for SystemInfoService.
type SystemInfoServiceServer interface {
	GetSystemInfo(context.Context, *SystemInfoRequest) (*SystemInfoResponse, error)
	StreamSystemInfo(*SystemInfoRequest, SystemInfoService_StreamSystemInfoServer) error
}

// UnimplementedSystemInfoServiceServer can be embedded for forward compatibility.
type UnimplementedSystemInfoServiceServer struct{}

func (UnimplementedSystemInfoServiceServer) GetSystemInfo(context.Context, *SystemInfoRequest) (*SystemInfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSystemInfo not implemented")
}

func (UnimplementedSystemInfoServiceServer) StreamSystemInfo(*SystemInfoRequest, SystemInfoService_StreamSystemInfoServer) error {
	return status.Error(codes.Unimplemented, "method StreamSystemInfo not implemented")
}

// RegisterSystemInfoServiceServer registers srv on s. The server must be
// created with grpc.ForceServerCodec(Codec{}).
func RegisterSystemInfoServiceServer(s grpc.ServiceRegistrar, srv SystemInfoServiceServer) {
	s.RegisterService(&SystemInfoService_ServiceDesc, srv)
}

func _SystemInfoService_GetSystemInfo_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SystemInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SystemInfoServiceServer).GetSystemInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SystemInfoService_GetSystemInfo_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SystemInfoServiceServer).GetSystemInfo(ctx, req.(*SystemInfoRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _SystemInfoService_StreamSystemInfo_Handler(srv any, stream grpc.ServerStream) error {
	m := new(SystemInfoRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SystemInfoServiceServer).StreamSystemInfo(m, &grpc.GenericServerStream[SystemInfoRequest, SystemInfoResponse]{ServerStream: stream})
}

// SystemInfoService_ServiceDesc is the grpc.ServiceDesc for SystemInfoService.
var SystemInfoService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "sysinfo.v1.SystemInfoService",
	HandlerType: (*SystemInfoServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetSystemInfo",
			Handler:    _SystemInfoService_GetSystemInfo_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSystemInfo",
			Handler:       _SystemInfoService_StreamSystemInfo_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "api/proto/v1/sysinfo.proto",
}
