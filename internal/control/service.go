// internal/control/service.go
package control

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
	"github.com/signalsfoundry/airspace-playback/internal/session"
)

// Service implements PlaybackControlServer on top of a session. Mutations
// go through session.With so they never overlap.
type Service struct {
	sess *session.Session
	log  logging.Logger
}

// NewService binds a Service to sess.
func NewService(sess *session.Session, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{sess: sess, log: log}
}

// NewServer builds a gRPC server with the standard interceptor chain and
// registers svc on it. collector may be nil.
func NewServer(svc *Service, collector *observability.PlaybackCollector, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{RequestIDUnaryServerInterceptor(svc.log)}
	if collector != nil {
		interceptors = append(interceptors, collector.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, TracingUnaryServerInterceptor())

	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}, opts...)
	server := grpc.NewServer(opts...)
	RegisterPlaybackControlServer(server, svc)
	return server
}

func (s *Service) ensureReady() error {
	if s == nil || s.sess == nil {
		return ToStatusError(core.ErrNotLoaded)
	}
	return nil
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func (s *Service) mutate(ctx context.Context, op string, fn func(*core.Simulation) error) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.sess.With(fn); err != nil {
		s.logger(ctx).Warn(ctx, op+" rejected", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return s.view()
}

func (s *Service) view() (*structpb.Struct, error) {
	v, err := s.sess.View()
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := structpb.NewStruct(v.AsMap())
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

// SetTick moves the playback position.
func (s *Service) SetTick(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	tick := req.GetValue()
	return s.mutate(ctx, "SetTick", func(sim *core.Simulation) error {
		return sim.SetTick(int(tick))
	})
}

// SelectAgents replaces the selection. Every list entry must be a string.
func (s *Service) SelectAgents(ctx context.Context, req *structpb.ListValue) (*structpb.Struct, error) {
	ids := make([]string, 0, len(req.GetValues()))
	for i, v := range req.GetValues() {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, ToStatusError(fmt.Errorf("%w: agent id %d is not a string", ErrInvalidArgument, i))
		}
		ids = append(ids, sv.StringValue)
	}
	return s.mutate(ctx, "SelectAgents", func(sim *core.Simulation) error {
		return sim.SetSelectedAgentIDs(ids)
	})
}

// FocusOn focuses a selected agent.
func (s *Service) FocusOn(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: agent id is required", ErrInvalidArgument))
	}
	return s.mutate(ctx, "FocusOn", func(sim *core.Simulation) error {
		return sim.FocusOnAgentID(id)
	})
}

// FocusOff clears the focus.
func (s *Service) FocusOff(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.mutate(ctx, "FocusOff", func(sim *core.Simulation) error {
		return sim.FocusOff()
	})
}

// GetView returns the current view.
func (s *Service) GetView(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return s.view()
}

// Reload re-reads the snapshot the session was loaded from.
func (s *Service) Reload(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	if err := s.sess.Reload(ctx); err != nil {
		s.logger(ctx).Error(ctx, "reload failed", logging.Err(err))
		return nil, ToStatusError(err)
	}
	return s.view()
}
