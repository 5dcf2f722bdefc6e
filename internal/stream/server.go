// Package stream exposes the playback over HTTP: read endpoints for the view,
// timeline, agents and buildings, a few mutation endpoints, Prometheus
// metrics and a websocket relaying simulation events.
package stream

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/observability"
	"github.com/signalsfoundry/airspace-playback/internal/session"
)

const requestIDHeader = "X-Request-ID"

// Option customises a Server.
type Option func(*Server)

func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithCollector(c *observability.PlaybackCollector) Option {
	return func(s *Server) { s.collector = c }
}

// WithServiceName sets the name reported by the otelgin middleware.
func WithServiceName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.serviceName = name
		}
	}
}

// WithSendBuffer sets how many events a websocket client may lag behind
// before it is disconnected.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// Server routes HTTP requests to a session.
type Server struct {
	sess        *session.Session
	log         logging.Logger
	collector   *observability.PlaybackCollector
	serviceName string
	sendBuffer  int
	writeWait   time.Duration
	upgrader    websocket.Upgrader
	router      *gin.Engine
}

// NewServer builds the router.
func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		sess:        sess,
		log:         logging.Noop(),
		serviceName: "airspace-playback",
		sendBuffer:  64,
		writeWait:   5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.serviceName))
	r.Use(s.requestContext())

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	if s.collector != nil {
		r.GET("/metrics", gin.WrapH(s.collector.Handler()))
	}

	v1 := r.Group("/v1")
	v1.GET("/view", s.handleView)
	v1.GET("/timeline", s.handleTimeline)
	v1.GET("/timeline/events", s.handleTimelineEvents)
	v1.GET("/agents", s.handleAgents)
	v1.GET("/agents/:id/events", s.handleAgentEvents)
	v1.GET("/agents/:id/overlay", s.handleAgentOverlay)
	v1.GET("/owners", s.handleOwners)
	v1.GET("/buildings", s.handleBuildings)
	v1.POST("/tick", s.handleSetTick)
	v1.POST("/selection", s.handleSelect)
	v1.POST("/focus", s.handleFocusOn)
	v1.DELETE("/focus", s.handleFocusOff)
	v1.POST("/reload", s.handleReload)
	v1.GET("/events", s.handleEvents)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// requestContext tags the request with a request ID and session logger and
// counts it once handled.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(requestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx = logging.ContextWithSessionID(ctx, s.sess.ID())
		base := s.log.With(logging.String("session_id", s.sess.ID()), logging.String("route", c.FullPath()))
		ctx, reqLog := logging.WithRequestLogger(ctx, base)
		ctx = logging.ContextWithLogger(ctx, reqLog)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, logging.RequestIDFromContext(ctx))

		c.Next()

		s.collector.IncHTTPRequest(c.FullPath(), c.Writer.Status())
	}
}

// httpStatus maps playback errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrAgentNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidTick),
		errors.Is(err, core.ErrInvalidSnapshot),
		errors.Is(err, core.ErrInvalidAgentType),
		errors.Is(err, core.ErrInvalidBlockerType),
		errors.Is(err, core.ErrInvalidAllocationReason),
		errors.Is(err, core.ErrDuplicateAgent):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAgentNotSelected),
		errors.Is(err, core.ErrReentrantUpdate),
		errors.Is(err, session.ErrNoStore):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotLoaded),
		errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		if l := logging.LoggerFromContext(c.Request.Context()); l != nil {
			l.Error(c.Request.Context(), "request failed", logging.Err(err))
		}
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
