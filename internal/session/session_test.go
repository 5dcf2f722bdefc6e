package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/maptile"
	"github.com/signalsfoundry/airspace-playback/internal/store"
	"github.com/signalsfoundry/airspace-playback/model"
)

func simulationJSON(name string) string {
	return `{
  "name": "` + name + `",
  "environment": {"dimensions": {"x": 10, "y": 10, "z": 10, "t": 3}, "blockers": []},
  "path_owners": [
    {"id": "o1", "agents": [
      {"agent_type": "path", "id": "A", "paths": [{"positions": {"0": [0, 0, 0], "1": [1, 0, 0]}}]},
      {"agent_type": "path", "id": "B", "paths": [{"positions": {"1": [1, 0, 0], "2": [2, 0, 0]}}]}
    ]}
  ]
}`
}

func testBundle(name string) store.Bundle {
	return store.Bundle{Simulation: []byte(simulationJSON(name))}
}

type fakeMetrics struct {
	mu    sync.Mutex
	loads int
}

func (f *fakeMetrics) SetIndexCounts(int, int, int)         {}
func (f *fakeMetrics) SetViewCounts(int, int, int, int)     {}
func (f *fakeMetrics) ObserveTimelineRebuild(time.Duration) {}
func (f *fakeMetrics) IncFocusTransition(string)            {}
func (f *fakeMetrics) ObserveSnapshotLoad(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
}

func TestLoadSelectsAllAndServesView(t *testing.T) {
	m := &fakeMetrics{}
	s := New(WithSelectAll(), WithMetrics(m))
	ctx := context.Background()

	if err := s.Load(ctx, testBundle("first")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Loaded() || s.LoadedAt().IsZero() {
		t.Fatalf("session not marked loaded")
	}
	v, err := s.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Name != "first" || v.MaxTick != 2 || !reflect.DeepEqual(v.SelectedAgents, []string{"A", "B"}) {
		t.Fatalf("view = %+v", v)
	}
	if !reflect.DeepEqual(v.ActiveAgents, []string{"A"}) {
		t.Fatalf("active at tick 0 = %v", v.ActiveAgents)
	}

	err = s.With(func(sim *core.Simulation) error {
		if err := sim.SetTick(1); err != nil {
			return err
		}
		return sim.FocusOnAgentID("B")
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	v, _ = s.View()
	if !reflect.DeepEqual(v.ActiveAgents, []string{"A", "B"}) || v.AgentInFocus != "B" || v.OwnerInFocus != "o1" {
		t.Fatalf("view after tick = %+v", v)
	}
	if m.loads != 1 {
		t.Fatalf("snapshot loads observed = %d", m.loads)
	}

	asMap := v.AsMap()
	if asMap["agent_in_focus"] != "B" || len(asMap["active_agents"].([]any)) != 2 {
		t.Fatalf("AsMap = %v", asMap)
	}
}

func TestOperationsBeforeLoad(t *testing.T) {
	s := New()
	if err := s.With(func(*core.Simulation) error { return nil }); !errors.Is(err, core.ErrNotLoaded) {
		t.Fatalf("With before load: %v", err)
	}
	if _, err := s.View(); !errors.Is(err, core.ErrNotLoaded) {
		t.Fatalf("View before load: %v", err)
	}
	if err := s.LoadFromStore(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Fatalf("LoadFromStore without store: %v", err)
	}
	if s.ID() == "" || s.ID() == New().ID() {
		t.Fatalf("session IDs not unique")
	}
}

func TestFailedLoadKeepsPreviousSimulation(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Load(ctx, testBundle("good")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	bad := store.Bundle{Simulation: []byte(`{"name":"bad","path_owners":[{"id":"o","agents":[{"agent_type":"drone","id":"x"}]}]}`)}
	if err := s.Load(ctx, bad); !errors.Is(err, core.ErrInvalidAgentType) {
		t.Fatalf("expected ErrInvalidAgentType, got %v", err)
	}
	if v, _ := s.View(); v.Name != "good" {
		t.Fatalf("previous simulation replaced: %q", v.Name)
	}
}

func TestBusSurvivesReload(t *testing.T) {
	s := New(WithSelectAll())
	var mu sync.Mutex
	var types []core.EventType
	s.Bus().Subscribe(func(e core.Event) {
		mu.Lock()
		types = append(types, e.Type)
		mu.Unlock()
	})

	dir := t.TempDir()
	if err := store.WriteDir(dir, testBundle("v1")); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	ctx := context.Background()
	if err := s.LoadFile(ctx, dir); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := store.WriteDir(dir, testBundle("v2")); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := s.With(func(sim *core.Simulation) error { return sim.SetTick(2) }); err != nil {
		t.Fatalf("SetTick: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []core.EventType{core.EventAgentsSelected, core.EventAgentsSelected, core.EventTickChanged}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	if v, _ := s.View(); v.Name != "v2" || s.Source() != dir {
		t.Fatalf("reload did not pick up v2: %+v", v)
	}
}

func TestLoadPersistsAndRestoresFromStore(t *testing.T) {
	st, err := store.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	first := New(WithStore(st))
	if err := first.Load(ctx, testBundle("persisted")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !st.CanLoadSimulation(ctx) {
		t.Fatalf("bundle not persisted")
	}

	second := New(WithStore(st))
	if err := second.Reload(ctx); err != nil {
		t.Fatalf("Reload from store: %v", err)
	}
	if v, _ := second.View(); v.Name != "persisted" {
		t.Fatalf("restored view = %+v", v)
	}
}

func TestLoadAwaitsMapTiles(t *testing.T) {
	tile := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"height":10},
		"geometry":{"type":"Polygon","coordinates":[[[11.2810,48.2410],[11.2812,48.2410],[11.2812,48.2412],[11.2810,48.2410]]]}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/16/34821/22715.json") {
			_, _ = w.Write([]byte(tile))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(WithTileLoader(maptile.NewLoader(maptile.Config{BaseURL: srv.URL})))
	b := testBundle("tiles")
	b.Config = []byte(`{"map":{"tiles":[[16,34821,22715],[16,34822,22715]],"resolution":1}}`)
	if err := s.Load(context.Background(), b); err != nil {
		t.Fatalf("Load: %v", err)
	}
	tiles := s.Buildings()
	if len(tiles) != 2 {
		t.Fatalf("tiles = %d", len(tiles))
	}
	if len(tiles[0].Buildings) != 1 || tiles[0].Buildings[0].Height != 10 {
		t.Fatalf("first tile = %+v", tiles[0])
	}
	if !tiles[1].Failed || len(tiles[1].Buildings) != 0 {
		t.Fatalf("failed tile = %+v", tiles[1])
	}
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	s := New()
	if err := s.Load(context.Background(), testBundle("x")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.View(); !errors.Is(err, ErrClosed) {
		t.Fatalf("View after close: %v", err)
	}
	if err := s.Load(context.Background(), testBundle("y")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Load after close: %v", err)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	if err := store.WriteDir(dir, testBundle("before")); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	s := New(WithDebounce(20 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.LoadFile(ctx, dir); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, dir) }()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, store.SimulationFile), []byte(simulationJSON("after")), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if v, _ := s.View(); v.Name == "after" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch did not reload")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}

func TestWatchMissingPath(t *testing.T) {
	if err := New().Watch(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestNewEventMessage(t *testing.T) {
	s := New(WithSelectAll())
	if err := s.Load(context.Background(), testBundle("events")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	var msgs []EventMessage
	s.Bus().Subscribe(func(e core.Event) { msgs = append(msgs, NewEventMessage(e)) })

	err := s.With(func(sim *core.Simulation) error {
		if err := sim.FocusOnAgentID("A"); err != nil {
			return err
		}
		return sim.SetTick(1)
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].Type != "focus_on" || msgs[0].Agent != "A" || msgs[0].Location != nil {
		t.Fatalf("focus on = %+v", msgs[0])
	}
	if msgs[1].Type != "tick_changed" || msgs[1].Tick != 1 {
		t.Fatalf("tick changed = %+v", msgs[1])
	}
	if msgs[2].Type != "focus_refresh" || msgs[2].Location == nil || msgs[2].Location.X != 1 {
		t.Fatalf("focus refresh = %+v", msgs[2])
	}
}

func TestReloadReleasesFocus(t *testing.T) {
	s := New(WithSelectAll())
	if err := s.Load(context.Background(), testBundle("first")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.With(func(sim *core.Simulation) error { return sim.FocusOnAgentID("A") }); err != nil {
		t.Fatalf("focus: %v", err)
	}
	var got []core.Event
	s.Bus().Subscribe(func(e core.Event) { got = append(got, e) })

	if err := s.Load(context.Background(), testBundle("second")); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got) == 0 || got[0].Type != core.EventFocusOff {
		t.Fatalf("events after reload = %+v, want focus_off first", got)
	}
	if got[0].Agent == nil || got[0].Agent.ID != "A" {
		t.Fatalf("focus_off agent = %+v, want A", got[0].Agent)
	}
	v, err := s.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.AgentInFocus != "" {
		t.Fatalf("focus after reload = %q", v.AgentInFocus)
	}
}

func TestEventMessageCarriesOverlay(t *testing.T) {
	detour := model.NewPath(map[int]model.Coordinate3D{
		1: {X: 1},
		2: {X: 1, Y: 1},
	})
	msg := NewEventMessage(core.Event{Type: core.EventFocusOn, Overlay: []*model.Path{detour}})

	want := [][]model.Coordinate4D{{{X: 1, T: 1}, {X: 1, Y: 1, T: 2}}}
	if !reflect.DeepEqual(msg.Overlay, want) {
		t.Fatalf("overlay = %+v, want %+v", msg.Overlay, want)
	}
}
