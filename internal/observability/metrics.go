package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// PlaybackCollector bundles Prometheus metrics for the playback engine and
// its control surfaces. It satisfies core.MetricsRecorder.
type PlaybackCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec

	Agents         prometheus.Gauge
	Blockers       prometheus.Gauge
	IndexedTicks   prometheus.Gauge
	SelectedAgents prometheus.Gauge
	ActiveAgents   prometheus.Gauge
	ActiveBlockers prometheus.Gauge
	TimelineMax    prometheus.Gauge

	FocusTransitions *prometheus.CounterVec
	TimelineRebuild  prometheus.Histogram
	SnapshotLoad     prometheus.Histogram
	TileFetches      *prometheus.CounterVec
}

// NewPlaybackCollector registers playback metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPlaybackCollector(reg prometheus.Registerer) (*PlaybackCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &PlaybackCollector{gatherer: gatherer}

	var err error
	if c.RPCRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_control_requests_total",
		Help: "Total number of handled control RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "playback_control_requests_total"); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playback_control_request_duration_seconds",
		Help:    "Control RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "playback_control_request_duration_seconds"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_http_requests_total",
		Help: "Total number of HTTP requests, labeled by route and status code.",
	}, []string{"route", "code"}), "playback_http_requests_total"); err != nil {
		return nil, err
	}

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.Agents, "playback_agents", "Number of agents in the loaded snapshot."},
		{&c.Blockers, "playback_blockers", "Number of blockers in the loaded snapshot."},
		{&c.IndexedTicks, "playback_indexed_ticks", "Number of ticks with at least one flying agent."},
		{&c.SelectedAgents, "playback_selected_agents", "Number of currently selected agents."},
		{&c.ActiveAgents, "playback_active_agents", "Number of selected agents flying at the current tick."},
		{&c.ActiveBlockers, "playback_active_blockers", "Number of blockers present at the current tick."},
		{&c.TimelineMax, "playback_timeline_max_tick", "Last tick covered by the timeline, -1 when empty."},
	}
	for _, g := range gauges {
		if *g.dst, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name); err != nil {
			return nil, err
		}
	}

	if c.FocusTransitions, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_focus_transitions_total",
		Help: "Focus state machine transitions, labeled by kind (on, off).",
	}, []string{"kind"}), "playback_focus_transitions_total"); err != nil {
		return nil, err
	}
	if c.TimelineRebuild, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "playback_timeline_rebuild_duration_seconds",
		Help:    "Duration of full timeline rebuilds after selection changes.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "playback_timeline_rebuild_duration_seconds"); err != nil {
		return nil, err
	}
	if c.SnapshotLoad, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "playback_snapshot_load_duration_seconds",
		Help:    "Duration of snapshot decode, index build and tile load.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "playback_snapshot_load_duration_seconds"); err != nil {
		return nil, err
	}
	if c.TileFetches, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_tile_fetches_total",
		Help: "Map tile building fetches, labeled by result (ok, error).",
	}, []string{"result"}), "playback_tile_fetches_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *PlaybackCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PlaybackCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PlaybackCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetIndexCounts records the size of a freshly built simulation.
func (c *PlaybackCollector) SetIndexCounts(agents, blockers, indexedTicks int) {
	if c == nil {
		return
	}
	c.Agents.Set(float64(agents))
	c.Blockers.Set(float64(blockers))
	c.IndexedTicks.Set(float64(indexedTicks))
}

// SetViewCounts records the derived view after a tick or selection change.
func (c *PlaybackCollector) SetViewCounts(selected, active, activeBlockers, maxTick int) {
	if c == nil {
		return
	}
	c.SelectedAgents.Set(float64(selected))
	c.ActiveAgents.Set(float64(active))
	c.ActiveBlockers.Set(float64(activeBlockers))
	c.TimelineMax.Set(float64(maxTick))
}

// ObserveTimelineRebuild records one timeline rebuild.
func (c *PlaybackCollector) ObserveTimelineRebuild(d time.Duration) {
	if c == nil || c.TimelineRebuild == nil {
		return
	}
	c.TimelineRebuild.Observe(d.Seconds())
}

// IncFocusTransition counts a focus-on or focus-off transition.
func (c *PlaybackCollector) IncFocusTransition(kind string) {
	if c == nil || c.FocusTransitions == nil {
		return
	}
	c.FocusTransitions.WithLabelValues(kind).Inc()
}

// ObserveSnapshotLoad records the end-to-end duration of a snapshot load.
func (c *PlaybackCollector) ObserveSnapshotLoad(d time.Duration) {
	if c == nil || c.SnapshotLoad == nil {
		return
	}
	c.SnapshotLoad.Observe(d.Seconds())
}

// IncTileFetch counts a tile fetch by outcome.
func (c *PlaybackCollector) IncTileFetch(ok bool) {
	if c == nil || c.TileFetches == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.TileFetches.WithLabelValues(result).Inc()
}

// IncHTTPRequest counts an HTTP request.
func (c *PlaybackCollector) IncHTTPRequest(route string, code int) {
	if c == nil || c.HTTPRequests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
