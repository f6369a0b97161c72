package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/mesh-architect/core"
	"github.com/signalsfoundry/mesh-architect/interchange"
	"github.com/signalsfoundry/mesh-architect/internal/logging"
	"github.com/signalsfoundry/mesh-architect/internal/state"
	"github.com/signalsfoundry/mesh-architect/model"
)

// PlannerService serves a PlanState over gRPC.
//
// Requests and responses are JSON-shaped Structs:
//   - ImportProject {payload: object|string, mode?: "replace"|"append", kind?}
//   - SetEnvironment {environment: {...}} merges onto the current environment.
//   - UpsertNode {node: {...}} returns {node, created}.
//   - MoveNode {id, lat, lng}, DeleteNode {id}.
//   - SetLinkOverride {from, to, distanceMeters?, los?}; neither value clears.
//   - LoadPreset {id?}.
//
// Mutations answer with the refreshed analysis under "analysis".
type PlannerService struct {
	UnimplementedPlannerServiceServer

	state *state.PlanState
	log   logging.Logger
}

// NewPlannerService constructs a PlannerService bound to st.
func NewPlannerService(st *state.PlanState, log logging.Logger) *PlannerService {
	if log == nil {
		log = logging.Noop()
	}
	return &PlannerService{state: st, log: log}
}

// ImportProject parses and applies a planning file.
func (s *PlannerService) ImportProject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	data, err := payloadBytes(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	mode := interchange.ParseMode(stringField(in, "mode"))
	kind := strings.TrimSpace(stringField(in, "kind"))

	ctx, span := startChildSpan(ctx, "planner.import",
		attribute.String("import.mode", string(mode)),
		attribute.Int("import.bytes", len(data)),
	)
	defer span.End()

	var report state.ImportReport
	if kind != "" {
		var res *interchange.Result
		if res, err = interchange.ParseAs(interchange.Kind(kind), data, s.state.Environment()); err == nil {
			report, err = s.state.Import(ctx, res, mode)
		}
	} else {
		report, err = s.state.ImportJSON(ctx, data, mode)
	}
	if err != nil {
		span.RecordError(err)
		logging.FromContext(ctx, s.log).Warn(ctx, "import rejected", logging.String("mode", string(mode)), logging.Err(err))
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.String("import.kind", string(report.Kind)))

	return s.respond(map[string]any{
		"kind":     report.Kind,
		"mode":     report.Mode,
		"imported": report.Imported,
		"laidOut":  report.LaidOut,
		"message":  report.Message,
	})
}

// ExportProject returns the plan as a MissionProject document.
func (s *PlannerService) ExportProject(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	data, err := s.state.ExportJSON()
	if err != nil {
		return nil, ToStatusError(err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode export: %v", err)
	}
	return out, nil
}

// GetAnalysis returns links, robustness and summary for the current plan.
func (s *PlannerService) GetAnalysis(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return toStruct(analysisDocument(s.state.Analysis()))
}

// SetEnvironment merges the given fields onto the current environment.
func (s *PlannerService) SetEnvironment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	envFields := in.GetFields()["environment"].GetStructValue()
	if envFields == nil {
		return nil, ToStatusError(fmt.Errorf("%w: environment is required", ErrInvalidRequest))
	}
	env := s.state.Environment()
	if err := decodeStruct(envFields, &env); err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.state.SetEnvironment(ctx, env); err != nil {
		return nil, ToStatusError(err)
	}
	return s.respond(map[string]any{"environment": s.state.Environment()})
}

// UpsertNode creates or replaces a node.
func (s *PlannerService) UpsertNode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	nodeFields := in.GetFields()["node"].GetStructValue()
	if nodeFields == nil {
		return nil, ToStatusError(fmt.Errorf("%w: node is required", ErrInvalidRequest))
	}
	var n model.Node
	if err := decodeStruct(nodeFields, &n); err != nil {
		return nil, ToStatusError(err)
	}
	if n.Role != "" {
		role, err := model.ParseRole(string(n.Role))
		if err != nil {
			return nil, ToStatusError(err)
		}
		n.Role = role
	}

	ctx, span := startChildSpan(ctx, "planner.upsert_node", attribute.String("entity_id", n.ID))
	defer span.End()

	stored, created, err := s.state.UpsertNode(ctx, n)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return s.respond(map[string]any{"node": stored, "created": created})
}

// MoveNode sets a node's coordinates.
func (s *PlannerService) MoveNode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := requiredString(in, "id")
	if err != nil {
		return nil, ToStatusError(err)
	}
	lat, okLat := numberField(in, "lat")
	lng, okLng := numberField(in, "lng")
	if !okLat || !okLng {
		return nil, ToStatusError(fmt.Errorf("%w: lat and lng are required", ErrInvalidRequest))
	}
	if err := s.state.MoveNode(ctx, id, lat, lng); err != nil {
		return nil, ToStatusError(err)
	}
	node, err := s.state.GetNode(id)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return s.respond(map[string]any{"node": node})
}

// DeleteNode removes a node and the overrides that reference it.
func (s *PlannerService) DeleteNode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := requiredString(in, "id")
	if err != nil {
		return nil, ToStatusError(err)
	}
	if err := s.state.DeleteNode(ctx, id); err != nil {
		return nil, ToStatusError(err)
	}
	return s.respond(map[string]any{"deleted": id})
}

// SetLinkOverride pins or clears distance and LOS for a pair.
func (s *PlannerService) SetLinkOverride(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	from, err := requiredString(in, "from")
	if err != nil {
		return nil, ToStatusError(err)
	}
	to, err := requiredString(in, "to")
	if err != nil {
		return nil, ToStatusError(err)
	}

	var ov core.LinkOverride
	if d, ok := numberField(in, "distanceMeters"); ok {
		ov.DistanceMeters = model.Float(d)
	}
	if los := strings.TrimSpace(stringField(in, "los")); los != "" {
		ov.LOS = core.LOSClass(los)
	}
	if err := s.state.SetLinkOverride(ctx, from, to, ov); err != nil {
		return nil, ToStatusError(err)
	}

	resp := map[string]any{"key": core.LinkKey(from, to), "cleared": ov.IsZero()}
	for _, l := range s.state.Analysis().Links {
		if l.Key() == core.LinkKey(from, to) {
			resp["link"] = l
			break
		}
	}
	return s.respond(resp)
}

// LoadPreset replaces the plan with a catalogue scenario.
func (s *PlannerService) LoadPreset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(stringField(in, "id"))

	ctx, span := startChildSpan(ctx, "planner.load_preset", attribute.String("preset", id))
	defer span.End()

	report, err := s.state.LoadPreset(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	logging.FromContext(ctx, s.log).Info(ctx, "preset loaded", logging.String("preset", id), logging.Int("nodes", report.Imported))
	return s.respond(map[string]any{
		"imported": report.Imported,
		"laidOut":  report.LaidOut,
		"message":  report.Message,
	})
}

// Reset empties the plan.
func (s *PlannerService) Reset(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.Reset(ctx)
	return s.respond(map[string]any{})
}

func (s *PlannerService) ensureReady() error {
	if s == nil || s.state == nil {
		return status.Error(codes.FailedPrecondition, "plan state is not configured")
	}
	return nil
}

func (s *PlannerService) respond(body map[string]any) (*structpb.Struct, error) {
	body["analysis"] = analysisDocument(s.state.Analysis())
	return toStruct(body)
}

func analysisDocument(a state.Analysis) map[string]any {
	return map[string]any{
		"nodes":      a.Nodes,
		"links":      a.Links,
		"robustness": a.Robustness,
		"summary":    a.Summary,
	}
}

func payloadBytes(in *structpb.Struct) ([]byte, error) {
	v, ok := in.GetFields()["payload"]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: payload is required", ErrInvalidRequest)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StructValue:
		return protojson.Marshal(kind.StructValue)
	case *structpb.Value_StringValue:
		if strings.TrimSpace(kind.StringValue) == "" {
			return nil, fmt.Errorf("%w: payload is empty", ErrInvalidRequest)
		}
		return []byte(kind.StringValue), nil
	default:
		return nil, fmt.Errorf("%w: payload must be an object or a JSON string", ErrInvalidRequest)
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func decodeStruct(in *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func numberField(in *structpb.Struct, key string) (float64, bool) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

func requiredString(in *structpb.Struct, key string) (string, error) {
	v := strings.TrimSpace(stringField(in, key))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, key)
	}
	return v, nil
}
