package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "playback.v1.PlaybackControl"

// Full method names.
const (
	SetTickMethod      = "/" + ServiceName + "/SetTick"
	SelectAgentsMethod = "/" + ServiceName + "/SelectAgents"
	FocusOnMethod      = "/" + ServiceName + "/FocusOn"
	FocusOffMethod     = "/" + ServiceName + "/FocusOff"
	GetViewMethod      = "/" + ServiceName + "/GetView"
	ReloadMethod       = "/" + ServiceName + "/Reload"
)

// PlaybackControlServer is the server API. Every method answers with the
// view after the call.
type PlaybackControlServer interface {
	SetTick(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	SelectAgents(context.Context, *structpb.ListValue) (*structpb.Struct, error)
	FocusOn(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	FocusOff(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetView(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reload(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes PlaybackControl for grpc.Server.RegisterService. The
// messages are protobuf well-known types, so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlaybackControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetTick", Handler: unaryHandler(SetTickMethod, PlaybackControlServer.SetTick)},
		{MethodName: "SelectAgents", Handler: unaryHandler(SelectAgentsMethod, PlaybackControlServer.SelectAgents)},
		{MethodName: "FocusOn", Handler: unaryHandler(FocusOnMethod, PlaybackControlServer.FocusOn)},
		{MethodName: "FocusOff", Handler: unaryHandler(FocusOffMethod, PlaybackControlServer.FocusOff)},
		{MethodName: "GetView", Handler: unaryHandler(GetViewMethod, PlaybackControlServer.GetView)},
		{MethodName: "Reload", Handler: unaryHandler(ReloadMethod, PlaybackControlServer.Reload)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "playback/v1/control.proto",
}

// RegisterPlaybackControlServer registers srv on s.
func RegisterPlaybackControlServer(s grpc.ServiceRegistrar, srv PlaybackControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type request[T any] interface {
	*T
	proto.Message
}

func unaryHandler[T any, PT request[T]](fullMethod string, call func(PlaybackControlServer, context.Context, PT) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := PT(new(T))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PlaybackControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PlaybackControlServer), ctx, req.(PT))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls PlaybackControl.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SetTick(ctx context.Context, tick int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SetTickMethod, wrapperspb.Int64(tick), opts...)
}

func (c *Client) SelectAgents(ctx context.Context, ids []string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(ids))}
	for _, id := range ids {
		list.Values = append(list.Values, structpb.NewStringValue(id))
	}
	return c.invoke(ctx, SelectAgentsMethod, list, opts...)
}

func (c *Client) FocusOn(ctx context.Context, agentID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FocusOnMethod, wrapperspb.String(agentID), opts...)
}

func (c *Client) FocusOff(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, FocusOffMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) GetView(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetViewMethod, &emptypb.Empty{}, opts...)
}

func (c *Client) Reload(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ReloadMethod, &emptypb.Empty{}, opts...)
}
