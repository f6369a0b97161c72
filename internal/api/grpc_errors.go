package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/mesh-architect/interchange"
	"github.com/signalsfoundry/mesh-architect/internal/state"
	"github.com/signalsfoundry/mesh-architect/model"
)

var (
	// ErrInvalidRequest is returned for structurally bad request messages.
	ErrInvalidRequest = errors.New("invalid request")
)

// ToStatusError maps planner errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, state.ErrNodeNotFound),
		errors.Is(err, interchange.ErrUnknownPreset):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, state.ErrNodeInvalid),
		errors.Is(err, state.ErrInvalidOverride),
		errors.Is(err, state.ErrLinkPairUnknown),
		errors.Is(err, state.ErrInvalidEnvironment),
		errors.Is(err, interchange.ErrUnsupportedPayload),
		errors.Is(err, interchange.ErrMalformed),
		errors.Is(err, interchange.ErrUnsupportedVersion),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrInvalidBand),
		errors.Is(err, model.ErrInvalidTerrain),
		errors.Is(err, model.ErrInvalidEWLevel):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, state.ErrNodeExists):
		return status.Error(codes.AlreadyExists, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
