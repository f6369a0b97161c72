package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified planner service name.
const ServiceName = "meshplanner.v1.PlannerService"

// Planner method names.
const (
	MethodImportProject   = "ImportProject"
	MethodExportProject   = "ExportProject"
	MethodGetAnalysis     = "GetAnalysis"
	MethodSetEnvironment  = "SetEnvironment"
	MethodUpsertNode      = "UpsertNode"
	MethodMoveNode        = "MoveNode"
	MethodDeleteNode      = "DeleteNode"
	MethodSetLinkOverride = "SetLinkOverride"
	MethodLoadPreset      = "LoadPreset"
	MethodReset           = "Reset"
)

// FullMethod returns "/meshplanner.v1.PlannerService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PlannerServiceServer is the server side of the planner service. Every
// request and response is a google.protobuf.Struct.
type PlannerServiceServer interface {
	ImportProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportProject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalysis(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpsertNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MoveNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetLinkOverride(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadPreset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedPlannerServiceServer returns Unimplemented for every method.
type UnimplementedPlannerServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedPlannerServiceServer) ImportProject(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodImportProject)
}
func (UnimplementedPlannerServiceServer) ExportProject(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodExportProject)
}
func (UnimplementedPlannerServiceServer) GetAnalysis(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetAnalysis)
}
func (UnimplementedPlannerServiceServer) SetEnvironment(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSetEnvironment)
}
func (UnimplementedPlannerServiceServer) UpsertNode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodUpsertNode)
}
func (UnimplementedPlannerServiceServer) MoveNode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodMoveNode)
}
func (UnimplementedPlannerServiceServer) DeleteNode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDeleteNode)
}
func (UnimplementedPlannerServiceServer) SetLinkOverride(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSetLinkOverride)
}
func (UnimplementedPlannerServiceServer) LoadPreset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLoadPreset)
}
func (UnimplementedPlannerServiceServer) Reset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodReset)
}

type structCall func(PlannerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PlannerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PlannerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PlannerServiceDesc describes the planner service for grpc.Server.
var PlannerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodImportProject, Handler: unaryHandler(MethodImportProject, PlannerServiceServer.ImportProject)},
		{MethodName: MethodExportProject, Handler: unaryHandler(MethodExportProject, PlannerServiceServer.ExportProject)},
		{MethodName: MethodGetAnalysis, Handler: unaryHandler(MethodGetAnalysis, PlannerServiceServer.GetAnalysis)},
		{MethodName: MethodSetEnvironment, Handler: unaryHandler(MethodSetEnvironment, PlannerServiceServer.SetEnvironment)},
		{MethodName: MethodUpsertNode, Handler: unaryHandler(MethodUpsertNode, PlannerServiceServer.UpsertNode)},
		{MethodName: MethodMoveNode, Handler: unaryHandler(MethodMoveNode, PlannerServiceServer.MoveNode)},
		{MethodName: MethodDeleteNode, Handler: unaryHandler(MethodDeleteNode, PlannerServiceServer.DeleteNode)},
		{MethodName: MethodSetLinkOverride, Handler: unaryHandler(MethodSetLinkOverride, PlannerServiceServer.SetLinkOverride)},
		{MethodName: MethodLoadPreset, Handler: unaryHandler(MethodLoadPreset, PlannerServiceServer.LoadPreset)},
		{MethodName: MethodReset, Handler: unaryHandler(MethodReset, PlannerServiceServer.Reset)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meshplanner/v1/planner.proto",
}

// RegisterPlannerServiceServer registers srv on s.
func RegisterPlannerServiceServer(s grpc.ServiceRegistrar, srv PlannerServiceServer) {
	s.RegisterService(&PlannerServiceDesc, srv)
}
