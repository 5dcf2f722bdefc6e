package control

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/session"
	"github.com/signalsfoundry/airspace-playback/internal/store"
)

// ErrInvalidArgument is used for malformed requests.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps playback errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, core.ErrAgentNotFound),
		errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidTick),
		errors.Is(err, core.ErrInvalidSnapshot),
		errors.Is(err, core.ErrInvalidAgentType),
		errors.Is(err, core.ErrInvalidBlockerType),
		errors.Is(err, core.ErrInvalidAllocationReason),
		errors.Is(err, core.ErrDuplicateAgent):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, core.ErrNotLoaded),
		errors.Is(err, core.ErrAgentNotSelected),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNoStore):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, core.ErrReentrantUpdate):
		return status.Error(codes.Aborted, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
