package core

import (
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/airspace-playback/internal/events"
)

// twoAgentSimulation is A {0:(0,0,0),1:(1,0,0)} and B {1:(1,0,0),2:(2,0,0)}.
const twoAgentSimulation = `{
  "name": "two agents",
  "environment": {"dimensions": {"x": 10, "y": 10, "z": 10, "t": 3}, "blockers": []},
  "path_owners": [
    {"id": "o1", "agents": [
      {"agent_type": "path", "id": "A", "paths": [{"positions": {"0": [0, 0, 0], "1": [1, 0, 0]}}]},
      {"agent_type": "path", "id": "B", "paths": [{"positions": {"1": [1, 0, 0], "2": [2, 0, 0]}}]}
    ]}
  ]
}`

// mixedSimulation carries both agent and both blocker variants plus
// intermediate allocations.
const mixedSimulation = `{
  "name": "mixed",
  "description": "paths, spaces and blockers",
  "environment": {
    "dimensions": {"x": 10, "y": 10, "z": 10, "t": 4},
    "blockers": [
      {"id": "blocker-0", "blocker_type": "static", "dimension": {"x": 1, "y": 1, "z": 1}, "location": {"x": 5, "y": 5, "z": 0}},
      {"id": "blocker-1", "blocker_type": "dynamic", "dimension": {"x": 1, "y": 1, "z": 1},
       "locations": [{"x": 0, "y": 9, "z": 1, "t": 1}, {"x": 1, "y": 9, "z": 1, "t": 2}]}
    ]
  },
  "path_owners": [
    {"id": "o1", "agents": [
      {"agent_type": "path", "id": "late", "speed": 1, "near_radius": 1, "battery": 50,
       "paths": [{"positions": {"3": [0, 0, 0], "4": [1, 0, 0], "5": [2, 0, 0]}}]},
      {"agent_type": "path", "id": "early", "speed": 2, "near_radius": 1, "battery": 80,
       "paths": [
         {"positions": {"0": [0, 1, 0], "1": [1, 1, 0]}},
         {"positions": {"3": [1, 1, 0], "4": [2, 1, 0]}}
       ],
       "intermediate_allocations": [
         {"tick": 0, "paths": [{"positions": {"0": [0, 1, 0], "1": [1, 1, 0]}}]},
         {"tick": 2, "paths": [{"positions": {"3": [1, 1, 0], "4": [2, 1, 0]}}]}
       ]},
      {"agent_type": "path", "id": "grounded", "paths": []}
    ]}
  ],
  "space_owners": [
    {"id": "o2", "agents": [
      {"agent_type": "space", "id": "box",
       "blocks": [
         {"min": {"x": 0, "y": 0, "z": 0, "t": 1}, "max": {"x": 2, "y": 2, "z": 2, "t": 3}},
         {"min": {"x": 4, "y": 4, "z": 0, "t": 3}, "max": {"x": 6, "y": 6, "z": 2, "t": 4}}
       ],
       "intermediate_allocations": [
         {"tick": 1, "spaces": [{"min": {"x": 0, "y": 0, "z": 0, "t": 1}, "max": {"x": 2, "y": 2, "z": 2, "t": 3}}]}
       ]}
    ]}
  ]
}`

const mixedStatistics = `{
  "path_owners": [
    {"id": "o1", "number_of_agents": 3, "total_time_in_air": 7,
     "values": {"values": [1.234, 5.678], "total": 6.912, "mean": 3.456, "median": 3.5, "max": 5.678, "min": 1.234,
                "quartiles": [1.2345, 3.4567, 5.6789], "outliers": [9.8765]},
     "agents": [
       {"id": "early", "value": 10, "non_colliding_value": 8, "time_in_air": 4,
        "violations": {
          "violations": {"late": [{"x": 1, "y": 1, "z": 0, "t": 3}, {"x": 1, "y": 1, "z": 0, "t": 3}, {"x": 2, "y": 1, "z": 0, "t": 4}]},
          "total_violations": 2,
          "blocker_violations": {"blocker-0": [{"x": 5, "y": 5, "z": 0, "t": 1}]},
          "total_blocker_violations": 1
        },
        "allocations": [
          {"tick": 0, "value": 10, "reason": "FIRST_ALLOCATION", "explanation": "first"},
          {"tick": 2, "value": 9, "reason": "REALLOCATION", "explanation": "displaced"}
        ]}
    ]}
  ],
  "space_owners": [
    {"id": "o2", "agents": [
      {"id": "box", "value": 3, "allocations": [{"tick": 1, "value": 3, "reason": "FIRST_ALLOCATION"}]}
    ]}
  ]
}`

const mixedOwnerMap = `{"o1": {"name": "Alpha", "color": "#ff0000"}, "o2": {"name": "Beta", "color": "#00ff00"}}`

func mustSimulation(t *testing.T, in SnapshotInput, opts ...Option) (*Simulation, *events.Bus[Event]) {
	t.Helper()
	snap, err := DecodeSnapshot(in)
	if err != nil {
		t.Fatalf("DecodeSnapshot error: %v", err)
	}
	bus := events.NewBus[Event]()
	sim, err := NewSimulation(snap, bus, opts...)
	if err != nil {
		t.Fatalf("NewSimulation error: %v", err)
	}
	return sim, bus
}

func twoAgentSim(t *testing.T, opts ...Option) (*Simulation, *events.Bus[Event]) {
	t.Helper()
	return mustSimulation(t, SnapshotInput{Simulation: []byte(twoAgentSimulation)}, opts...)
}

func mixedSim(t *testing.T, opts ...Option) (*Simulation, *events.Bus[Event]) {
	t.Helper()
	return mustSimulation(t, SnapshotInput{
		Simulation: []byte(mixedSimulation),
		Statistics: []byte(mixedStatistics),
		OwnerMap:   []byte(mixedOwnerMap),
	}, opts...)
}

func mustAgent(t *testing.T, sim *Simulation, id string) *Agent {
	t.Helper()
	a, ok := sim.Agent(id)
	if !ok {
		t.Fatalf("agent %q not found", id)
	}
	return a
}

// eventLog records everything published on a bus.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func recordEvents(bus *events.Bus[Event]) *eventLog {
	l := &eventLog{}
	bus.Subscribe(func(e Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, e)
	})
	return l
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) count(tp EventType) int {
	n := 0
	for _, got := range l.types() {
		if got == tp {
			n++
		}
	}
	return n
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type fakeMetrics struct {
	agents, blockers, indexedTicks int
	selected, active, maxTick      int
	rebuilds                       int
	focus                          map[string]int
}

func (f *fakeMetrics) SetIndexCounts(agents, blockers, indexedTicks int) {
	f.agents, f.blockers, f.indexedTicks = agents, blockers, indexedTicks
}

func (f *fakeMetrics) SetViewCounts(selected, active, activeBlockers, maxTick int) {
	f.selected, f.active, f.maxTick = selected, active, maxTick
}

func (f *fakeMetrics) ObserveTimelineRebuild(time.Duration) { f.rebuilds++ }

func (f *fakeMetrics) IncFocusTransition(kind string) {
	if f.focus == nil {
		f.focus = make(map[string]int)
	}
	f.focus[kind]++
}

func ids(agents []*Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.ID)
	}
	return out
}
