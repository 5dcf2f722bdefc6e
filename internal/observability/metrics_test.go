package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("NewPlaybackCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/playback.v1.PlaybackControl/SetTick"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("PlaybackControl", "SetTick", "OK")); got != 1 {
		t.Fatalf("playback_control_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "playback_control_request_duration_seconds", map[string]string{
		"service": "PlaybackControl",
		"method":  "SetTick",
	}); count != 1 {
		t.Fatalf("playback_control_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("NewPlaybackCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/playback.v1.PlaybackControl/FocusOn"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "not selected")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("PlaybackControl", "FocusOn", "FailedPrecondition")); got != 1 {
		t.Fatalf("playback_control_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesPlaybackGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("NewPlaybackCollector: %v", err)
	}
	collector.SetIndexCounts(7, 2, 40)
	collector.SetViewCounts(3, 1, 2, 39)
	collector.ObserveTimelineRebuild(2 * time.Millisecond)
	collector.IncFocusTransition("on")
	collector.IncFocusTransition("on")
	collector.IncFocusTransition("off")
	collector.IncTileFetch(false)
	collector.IncHTTPRequest("/v1/view", 200)

	if got := testutil.ToFloat64(collector.Agents); got != 7 {
		t.Fatalf("playback_agents = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.TimelineMax); got != 39 {
		t.Fatalf("playback_timeline_max_tick = %v, want 39", got)
	}
	if got := testutil.ToFloat64(collector.FocusTransitions.WithLabelValues("on")); got != 2 {
		t.Fatalf("focus on transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.TileFetches.WithLabelValues("error")); got != 1 {
		t.Fatalf("tile fetch errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/v1/view", "200")); got != 1 {
		t.Fatalf("http requests = %v, want 1", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"playback_agents 7",
		"playback_blockers 2",
		"playback_indexed_ticks 40",
		"playback_selected_agents 3",
		"playback_active_agents 1",
		"playback_active_blockers 2",
		"playback_timeline_rebuild_duration_seconds",
		"playback_focus_transitions_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *PlaybackCollector
	c.SetIndexCounts(1, 1, 1)
	c.SetViewCounts(1, 1, 1, 1)
	c.ObserveTimelineRebuild(time.Millisecond)
	c.ObserveSnapshotLoad(time.Millisecond)
	c.IncFocusTransition("on")
	c.IncTileFetch(true)
	c.IncHTTPRequest("", 404)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("first NewPlaybackCollector: %v", err)
	}
	second, err := NewPlaybackCollector(reg)
	if err != nil {
		t.Fatalf("second NewPlaybackCollector: %v", err)
	}
	first.SetIndexCounts(5, 0, 0)
	if got := testutil.ToFloat64(second.Agents); got != 5 {
		t.Fatalf("second collector does not share gauge: %v", got)
	}
}

func TestSplitMethod(t *testing.T) {
	tests := []struct {
		in      string
		service string
		method  string
	}{
		{"/playback.v1.PlaybackControl/GetView", "PlaybackControl", "GetView"},
		{"PlaybackControl/SetTick", "PlaybackControl", "SetTick"},
		{"", "unknown", "unknown"},
		{"/broken", "unknown", "unknown"},
	}
	for _, tt := range tests {
		service, method := SplitMethod(tt.in)
		if service != tt.service || method != tt.method {
			t.Errorf("SplitMethod(%q) = %q/%q, want %q/%q", tt.in, service, method, tt.service, tt.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
