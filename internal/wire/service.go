// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package wire // import "github.com/arrowbridge/bridge/internal/wire"

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName          = "arrowbridge.v1.ArrowStreamService"
	capabilitiesFullName = "/arrowbridge.v1.ArrowStreamService/Capabilities"
	arrowStreamFullName  = "/arrowbridge.v1.ArrowStreamService/ArrowStream"
)

// ArrowStreamServiceClient is the client API of ArrowStreamService.
type ArrowStreamServiceClient interface {
	// Capabilities is the negotiation handshake.
	Capabilities(ctx context.Context, in *CapabilitiesRequest, opts ...grpc.CallOption) (*CapabilitiesResponse, error)
	// ArrowStream opens one payload delivery stream.
	ArrowStream(ctx context.Context, opts ...grpc.CallOption) (ArrowStreamService_ArrowStreamClient, error)
}

// ArrowStreamService_ArrowStreamClient is the client side of one payload
// delivery stream.
type ArrowStreamService_ArrowStreamClient interface {
	Send(*BatchRecords) error
	Recv() (*BatchStatus, error)
	CloseSend() error
}

type arrowStreamServiceClient struct {
	cc *grpc.ClientConn
}

// NewArrowStreamServiceClient returns a client stub bound to cc. All calls
// use the bridge codec.
func NewArrowStreamServiceClient(cc *grpc.ClientConn) ArrowStreamServiceClient {
	return &arrowStreamServiceClient{cc: cc}
}

func (c *arrowStreamServiceClient) Capabilities(ctx context.Context, in *CapabilitiesRequest, opts ...grpc.CallOption) (*CapabilitiesResponse, error) {
	out := new(CapabilitiesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, capabilitiesFullName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *arrowStreamServiceClient) ArrowStream(ctx context.Context, opts ...grpc.CallOption) (ArrowStreamService_ArrowStreamClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &arrowStreamServiceDesc.Streams[0], arrowStreamFullName, opts...)
	if err != nil {
		return nil, err
	}
	return &arrowStreamClient{ClientStream: stream}, nil
}

type arrowStreamClient struct {
	grpc.ClientStream
}

func (x *arrowStreamClient) Send(m *BatchRecords) error {
	return x.ClientStream.SendMsg(m)
}

func (x *arrowStreamClient) Recv() (*BatchStatus, error) {
	m := new(BatchStatus)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ArrowStreamServiceServer is the server API of ArrowStreamService.
type ArrowStreamServiceServer interface {
	Capabilities(context.Context, *CapabilitiesRequest) (*CapabilitiesResponse, error)
	ArrowStream(ArrowStreamService_ArrowStreamServer) error
}

// ArrowStreamService_ArrowStreamServer is the server side of one payload
// delivery stream.
type ArrowStreamService_ArrowStreamServer interface {
	Send(*BatchStatus) error
	Recv() (*BatchRecords, error)
	Context() context.Context
}

type arrowStreamServer struct {
	grpc.ServerStream
}

func (x *arrowStreamServer) Send(m *BatchStatus) error {
	return x.ServerStream.SendMsg(m)
}

func (x *arrowStreamServer) Recv() (*BatchRecords, error) {
	m := new(BatchRecords)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterArrowStreamServiceServer registers srv on s.
func RegisterArrowStreamServiceServer(s *grpc.Server, srv ArrowStreamServiceServer) {
	s.RegisterService(&arrowStreamServiceDesc, srv)
}

func capabilitiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CapabilitiesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArrowStreamServiceServer).Capabilities(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: capabilitiesFullName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArrowStreamServiceServer).Capabilities(ctx, req.(*CapabilitiesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func arrowStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ArrowStreamServiceServer).ArrowStream(&arrowStreamServer{ServerStream: stream})
}

var arrowStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ArrowStreamServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Capabilities",
			Handler:    capabilitiesHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ArrowStream",
			Handler:       arrowStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "internal/wire/arrowbridge.proto",
}
