package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// PlannerClient calls PlannerService over a client connection.
type PlannerClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerClient wraps cc.
func NewPlannerClient(cc grpc.ClientConnInterface) *PlannerClient {
	return &PlannerClient{cc: cc}
}

// Call invokes method with a request built from fields. A nil map sends an
// empty Struct.
func (c *PlannerClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportProject sends payload, an object or a JSON string, in mode.
func (c *PlannerClient) ImportProject(ctx context.Context, payload any, mode string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodImportProject, map[string]any{"payload": payload, "mode": mode}, opts...)
}

// ExportProject fetches the MissionProject document.
func (c *PlannerClient) ExportProject(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodExportProject, nil, opts...)
}

// GetAnalysis fetches the current analysis.
func (c *PlannerClient) GetAnalysis(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodGetAnalysis, nil, opts...)
}

// MoveNode repositions id.
func (c *PlannerClient) MoveNode(ctx context.Context, id string, lat, lng float64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodMoveNode, map[string]any{"id": id, "lat": lat, "lng": lng}, opts...)
}

// DeleteNode removes id.
func (c *PlannerClient) DeleteNode(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodDeleteNode, map[string]any{"id": id}, opts...)
}

// LoadPreset replaces the plan with preset id.
func (c *PlannerClient) LoadPreset(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodLoadPreset, map[string]any{"id": id}, opts...)
}

// Reset empties the plan.
func (c *PlannerClient) Reset(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodReset, nil, opts...)
}
