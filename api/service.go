package api

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "blockseal.Sealer"

const (
	sealMethod     = "/" + serviceName + "/Seal"
	verifyMethod   = "/" + serviceName + "/Verify"
	restoreMethod  = "/" + serviceName + "/Restore"
	getBlockMethod = "/" + serviceName + "/GetBlock"
)

// SealerServer is the server side of the sealer service
type SealerServer interface {
	Seal(context.Context, *SealRequest) (*SealResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	Restore(context.Context, *RestoreRequest) (*RestoreResponse, error)
	GetBlock(context.Context, *GetBlockRequest) (*GetBlockResponse, error)
}

// RegisterSealerServer registers srv on s. The server must be created with
// ServerOptions.
func RegisterSealerServer(s grpc.ServiceRegistrar, srv SealerServer) {
	s.RegisterService(&sealerServiceDesc, srv)
}

var sealerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SealerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Seal", Handler: sealHandler},
		{MethodName: "Verify", Handler: verifyHandler},
		{MethodName: "Restore", Handler: restoreHandler},
		{MethodName: "GetBlock", Handler: getBlockHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func sealHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SealRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SealerServer).Seal(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sealMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SealerServer).Seal(ctx, req.(*SealRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(VerifyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SealerServer).Verify(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: verifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SealerServer).Verify(ctx, req.(*VerifyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func restoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RestoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SealerServer).Restore(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: restoreMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SealerServer).Restore(ctx, req.(*RestoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SealerServer).GetBlock(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getBlockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SealerServer).GetBlock(ctx, req.(*GetBlockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServerOptions returns the options every server of the service needs
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(Codec{})}
}

// SealerClient is the client side of the sealer service
type SealerClient struct {
	cc grpc.ClientConnInterface
}

// NewSealerClient wraps cc, which must be dialed with DialOptions
func NewSealerClient(cc grpc.ClientConnInterface) *SealerClient {
	return &SealerClient{cc: cc}
}

func (c *SealerClient) Seal(ctx context.Context, in *SealRequest, opts ...grpc.CallOption) (*SealResponse, error) {
	out := new(SealResponse)
	if err := c.cc.Invoke(ctx, sealMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SealerClient) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	out := new(VerifyResponse)
	if err := c.cc.Invoke(ctx, verifyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SealerClient) Restore(ctx context.Context, in *RestoreRequest, opts ...grpc.CallOption) (*RestoreResponse, error) {
	out := new(RestoreResponse)
	if err := c.cc.Invoke(ctx, restoreMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SealerClient) GetBlock(ctx context.Context, in *GetBlockRequest, opts ...grpc.CallOption) (*GetBlockResponse, error) {
	out := new(GetBlockResponse)
	if err := c.cc.Invoke(ctx, getBlockMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// DialOptions returns the call options every client of the service needs
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{}))}
}
