// grpc_transport.go: gRPC control plane for the plugin host
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"context"
	"errors"
	"net"

	goerrors "github.com/agilira/go-errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlServiceName is the fully qualified gRPC service name.
const ControlServiceName = "pluginhost.Control"

// Catalog is the read side of discovery used by the control plane.
type Catalog interface {
	LastCatalog() []CatalogEntry
	Find(name string) (*CatalogEntry, error)
}

// ControlService is implemented by ControlServer. Messages are well-known
// protobuf types so no generated code is needed on either side.
type ControlService interface {
	List(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Start(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Stop(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Restart(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Pause(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Status(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

func unaryMethod[Req proto.Message](method string, newReq func() Req, call func(ControlService, context.Context, Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(ControlService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ControlServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(Req))
			})
		},
	}
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }

func newStruct() *structpb.Struct { return new(structpb.Struct) }

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("List", newEmpty, ControlService.List),
		unaryMethod("Start", newStruct, ControlService.Start),
		unaryMethod("Stop", newEmpty, ControlService.Stop),
		unaryMethod("Restart", newEmpty, ControlService.Restart),
		unaryMethod("Pause", newEmpty, ControlService.Pause),
		unaryMethod("Status", newEmpty, ControlService.Status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pluginhost/control",
}

// ControlServer exposes the lifecycle manager over gRPC.
type ControlServer struct {
	manager *Manager
	catalog Catalog
	logger  Logger
	server  *grpc.Server
}

// NewControlServer creates a server; call Serve or ListenAndServe to accept requests.
func NewControlServer(manager *Manager, catalog Catalog, logger Logger) *ControlServer {
	logger = NewLogger(logger).With("component", "control_server")
	s := &ControlServer{manager: manager, catalog: catalog, logger: logger}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor))
	s.server.RegisterService(&controlServiceDesc, s)
	return s
}

// Serve accepts connections on lis until Shutdown.
func (s *ControlServer) Serve(lis net.Listener) error {
	s.logger.Info("Control server listening", "address", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return NewControlServeError(lis.Addr().String(), err)
	}
	return nil
}

// ListenAndServe listens on address and serves until ctx is done.
func (s *ControlServer) ListenAndServe(ctx context.Context, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return NewControlServeError(address, err)
	}
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()
	return s.Serve(lis)
}

// Shutdown finishes pending requests and closes every listener.
func (s *ControlServer) Shutdown() {
	s.server.GracefulStop()
}

func (s *ControlServer) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(s.logger, "control_request", r)
			err = status.Errorf(codes.Internal, "%s panicked", info.FullMethod)
		}
	}()
	return handler(ctx, req)
}

// List returns the visible catalog entries.
func (s *ControlServer) List(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var plugins []any
	for _, entry := range s.catalog.LastCatalog() {
		if entry.Descriptor.Hidden {
			continue
		}
		plugins = append(plugins, map[string]any{
			"name":        entry.Descriptor.Name,
			"description": entry.Descriptor.Description,
			"type":        entry.TypeName(),
			"archive":     entry.Archive,
			"tags":        anySlice(entry.Descriptor.Tags),
		})
	}
	return newReply(map[string]any{"plugins": plugins})
}

// Start expects {"name": string, "args": [string...]}.
func (s *ControlServer) Start(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name := in.GetFields()["name"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	entry, err := s.catalog.Find(name)
	if err != nil {
		return nil, toStatus(err)
	}
	var args []string
	for _, v := range in.GetFields()["args"].GetListValue().GetValues() {
		args = append(args, v.GetStringValue())
	}
	if err := s.manager.StartPlugin(ctx, entry, args...); err != nil {
		return nil, toStatus(err)
	}
	return s.Status(ctx, nil)
}

// Stop deactivates the active plugin and returns the new status.
func (s *ControlServer) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.manager.StopPlugin(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.Status(ctx, nil)
}

// Restart restarts the active plugin with its recorded arguments.
func (s *ControlServer) Restart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.manager.RestartPlugin(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.Status(ctx, nil)
}

// Pause pauses the active script.
func (s *ControlServer) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.manager.PauseScript(ctx); err != nil {
		return nil, toStatus(err)
	}
	return s.Status(ctx, nil)
}

// Status reports the active session.
func (s *ControlServer) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	session := s.manager.Session()
	reply := map[string]any{
		"active":         session.Active(),
		"script_running": s.manager.IsScriptRunning(),
	}
	if session.Active() {
		reply["name"] = session.Plugin.Name()
		if session.Entry != nil {
			reply["type"] = session.Entry.TypeName()
		}
		reply["args"] = anySlice(session.Args)
	}
	return newReply(reply)
}

func newReply(values map[string]any) (*structpb.Struct, error) {
	reply, err := structpb.NewStruct(values)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// toStatus maps host error codes to gRPC status codes.
func toStatus(err error) error {
	var hostErr *goerrors.Error
	if !errors.As(err, &hostErr) {
		return status.Error(codes.Unknown, err.Error())
	}
	switch string(hostErr.Code) {
	case ErrCodeEntryNotFound, ErrCodeTypeNotFound:
		return status.Error(codes.NotFound, hostErr.Error())
	case ErrCodeManagerStopped, ErrCodeManagerNotRunning:
		return status.Error(codes.Unavailable, hostErr.Error())
	case ErrCodeInvalidCatalogEntry:
		return status.Error(codes.InvalidArgument, hostErr.Error())
	default:
		return status.Error(codes.FailedPrecondition, hostErr.Error())
	}
}

// ControlClient calls a remote ControlServer.
type ControlClient struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// DialControl connects to a control server over plaintext TCP.
func DialControl(address string, opts ...grpc.DialOption) (*ControlClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, NewControlRequestError("dial", err)
	}
	return &ControlClient{cc: conn, conn: conn}, nil
}

// NewControlClient wraps an existing connection.
func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// Close closes the connection opened by DialControl.
func (c *ControlClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *ControlClient) invoke(ctx context.Context, method string, in proto.Message) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ControlServiceName+"/"+method, in, out); err != nil {
		return nil, NewControlRequestError(method, err)
	}
	return out.AsMap(), nil
}

// List returns the visible catalog entries.
func (c *ControlClient) List(ctx context.Context) ([]map[string]any, error) {
	reply, err := c.invoke(ctx, "List", &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	raw, _ := reply["plugins"].([]any)
	plugins := make([]map[string]any, 0, len(raw))
	for _, p := range raw {
		if m, ok := p.(map[string]any); ok {
			plugins = append(plugins, m)
		}
	}
	return plugins, nil
}

// Start activates the plugin registered as name.
func (c *ControlClient) Start(ctx context.Context, name string, args ...string) (map[string]any, error) {
	in, err := structpb.NewStruct(map[string]any{"name": name, "args": anySlice(args)})
	if err != nil {
		return nil, NewControlRequestError("Start", err)
	}
	return c.invoke(ctx, "Start", in)
}

// Stop deactivates the active plugin.
func (c *ControlClient) Stop(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Stop", &emptypb.Empty{})
}

// Restart restarts the active plugin.
func (c *ControlClient) Restart(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Restart", &emptypb.Empty{})
}

// Pause pauses the active script.
func (c *ControlClient) Pause(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Pause", &emptypb.Empty{})
}

// Status returns the remote session status.
func (c *ControlClient) Status(ctx context.Context) (map[string]any, error) {
	return c.invoke(ctx, "Status", &emptypb.Empty{})
}
