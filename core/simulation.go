// core/simulation.go
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/airspace-playback/internal/events"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/model"
)

// MetricsRecorder receives index and view updates from a Simulation.
type MetricsRecorder interface {
	SetIndexCounts(agents, blockers, indexedTicks int)
	SetViewCounts(selected, active, activeBlockers, maxTick int)
	ObserveTimelineRebuild(d time.Duration)
	IncFocusTransition(kind string)
}

// Option customises Simulation construction.
type Option func(*Simulation)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Simulation) {
		s.metrics = m
	}
}

// WithActiveOnlyFocus makes FocusOnAgent a no-op for agents that are not
// active at the current tick.
func WithActiveOnlyFocus() Option {
	return func(s *Simulation) {
		s.activeOnlyFocus = true
	}
}

// Simulation is the aggregate root of a loaded snapshot. The entity graph
// and both tick indices are read-only after NewSimulation returns; only the
// tick, selection and focus fields change.
//
// Mutators must not be called concurrently with each other; readers may run
// from any goroutine. Events are published after the view state they
// describe is in place and outside the state lock, so handlers may call the
// accessors. A handler calling a mutator gets ErrReentrantUpdate.
type Simulation struct {
	mu sync.RWMutex

	Name        string
	Description string
	Dimensions  model.Coordinate4D
	Statistics  *model.SimulationStatistics

	owners    []*Owner
	agents    []*Agent
	agentByID map[string]*Agent
	blockers  []*Blocker

	flyingAgentsPerTick   map[int][]*Agent
	activeBlockersPerTick map[int][]*Blocker

	tick            int
	selectedIDs     map[string]struct{}
	selectedAgents  []*Agent
	activeAgents    []*Agent
	activeBlockers  []*Blocker
	timeline        Timeline
	timelineEvents  map[int][]TimelineEvent
	agentInFocus    *Agent
	activeOnlyFocus bool

	bus         *events.Bus[Event]
	dispatching atomic.Bool

	log     logging.Logger
	metrics MetricsRecorder
}

// NewSimulation builds the entity graph and both tick indices. A nil bus
// gets replaced by a private one, reachable through Bus.
func NewSimulation(snap *Snapshot, bus *events.Bus[Event], opts ...Option) (*Simulation, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if bus == nil {
		bus = events.NewBus[Event]()
	}
	s := &Simulation{
		Name:        snap.Simulation.Name,
		Description: snap.Simulation.Description,
		Dimensions:  snap.Simulation.Environment.Dimensions,
		Statistics:  snap.Statistics,
		selectedIDs: make(map[string]struct{}),
		bus:         bus,
		log:         logging.Noop(),
		timeline:    emptyTimeline(),
	}
	for _, opt := range opts {
		opt(s)
	}

	owners, agents, blockers, err := buildEntities(snap)
	if err != nil {
		return nil, fmt.Errorf("NewSimulation: %w", err)
	}
	sortAgentsByFirstTick(agents)

	s.owners = owners
	s.agents = agents
	s.blockers = blockers
	s.agentByID = make(map[string]*Agent, len(agents))
	for _, a := range agents {
		s.agentByID[a.ID] = a
	}
	s.flyingAgentsPerTick = buildFlyingAgentsPerTickIndex(agents)
	s.activeBlockersPerTick = buildActiveBlockersPerTickIndex(blockers)

	s.updateActiveBlockers()
	if s.metrics != nil {
		s.metrics.SetIndexCounts(len(agents), len(blockers), len(s.flyingAgentsPerTick))
	}
	s.recordView()

	s.log.Info(context.Background(), "simulation indexed",
		logging.String("name", s.Name),
		logging.Int("owners", len(owners)),
		logging.Int("agents", len(agents)),
		logging.Int("blockers", len(blockers)),
		logging.Int("indexed_ticks", len(s.flyingAgentsPerTick)),
	)
	return s, nil
}

// sortAgentsByFirstTick orders agents by their first flying tick. Agents
// without ticks go last; ties keep snapshot order.
func sortAgentsByFirstTick(agents []*Agent) {
	sort.SliceStable(agents, func(i, j int) bool {
		ti, oki := agents[i].VeryFirstTick()
		tj, okj := agents[j].VeryFirstTick()
		switch {
		case oki && okj:
			return ti < tj
		default:
			return oki && !okj
		}
	})
}

func buildFlyingAgentsPerTickIndex(agents []*Agent) map[int][]*Agent {
	idx := make(map[int][]*Agent)
	for _, a := range agents {
		for _, t := range a.FlyingTicks() {
			idx[t] = append(idx[t], a)
		}
	}
	return idx
}

func buildActiveBlockersPerTickIndex(blockers []*Blocker) map[int][]*Blocker {
	idx := make(map[int][]*Blocker)
	for _, b := range blockers {
		for _, t := range b.TicksInAir() {
			idx[t] = append(idx[t], b)
		}
	}
	return idx
}

// Bus returns the event channel the simulation publishes on.
func (s *Simulation) Bus() *events.Bus[Event] { return s.bus }

func (s *Simulation) publish(evs ...Event) {
	if len(evs) == 0 {
		return
	}
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)
	for _, e := range evs {
		s.bus.Publish(e)
	}
}

func (s *Simulation) guard() error {
	if s == nil {
		return ErrNotLoaded
	}
	if s.dispatching.Load() {
		return ErrReentrantUpdate
	}
	return nil
}

// SetTick moves the playback position. Only the active agent and blocker
// views are recomputed; the timeline is left untouched. After the
// tick-changed event a focused agent gets a focus refresh.
func (s *Simulation) SetTick(t int) error {
	if err := s.guard(); err != nil {
		return err
	}
	if t < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTick, t)
	}

	s.mu.Lock()
	if s.tick == t {
		s.mu.Unlock()
		return nil
	}
	s.tick = t
	s.updateActiveAgents()
	s.updateActiveBlockers()
	s.recordView()
	s.mu.Unlock()

	s.publish(Event{Type: EventTickChanged, Tick: t})
	return s.UpdateFocus()
}

// SetSelectedAgentIDs replaces the selection. Unknown IDs are ignored.
// Recomputes selected agents, then active agents, then the timeline, and
// only then publishes. Deselecting the focused agent drops the focus first.
func (s *Simulation) SetSelectedAgentIDs(ids []string) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.Lock()
	selected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.agentByID[id]; ok {
			selected[id] = struct{}{}
		}
	}
	s.selectedIDs = selected
	s.updateSelectedAgents()
	s.updateActiveAgents()
	s.updateTimeline()
	s.recordView()

	var evs []Event
	if f := s.agentInFocus; f != nil {
		if _, ok := selected[f.ID]; !ok {
			s.agentInFocus = nil
			evs = append(evs, Event{Type: EventFocusOff, Tick: s.tick, Agent: f})
			s.recordFocus("off")
		}
	}
	evs = append(evs, Event{Type: EventAgentsSelected, Tick: s.tick, SelectedIDs: s.selectedIDsLocked()})
	s.mu.Unlock()

	s.publish(evs...)
	return nil
}

// updateSelectedAgents keeps the sorted agent order.
func (s *Simulation) updateSelectedAgents() {
	out := make([]*Agent, 0, len(s.selectedIDs))
	for _, a := range s.agents {
		if _, ok := s.selectedIDs[a.ID]; ok {
			out = append(out, a)
		}
	}
	s.selectedAgents = out
}

func (s *Simulation) updateActiveAgents() {
	flying := s.flyingAgentsPerTick[s.tick]
	out := make([]*Agent, 0, len(flying))
	for _, a := range flying {
		if _, ok := s.selectedIDs[a.ID]; ok {
			out = append(out, a)
		}
	}
	s.activeAgents = out
}

func (s *Simulation) updateActiveBlockers() {
	s.activeBlockers = s.activeBlockersPerTick[s.tick]
}

func (s *Simulation) recordView() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetViewCounts(len(s.selectedAgents), len(s.activeAgents), len(s.activeBlockers), s.timeline.MaxTick)
}

func (s *Simulation) selectedIDsLocked() []string {
	out := make([]string, 0, len(s.selectedAgents))
	for _, a := range s.selectedAgents {
		out = append(out, a.ID)
	}
	return out
}

// Tick returns the current playback tick.
func (s *Simulation) Tick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// SelectedAgentIDs returns the selected IDs in agent order.
func (s *Simulation) SelectedAgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIDsLocked()
}

// SelectedAgents returns the selected agents in agent order.
func (s *Simulation) SelectedAgents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Agent(nil), s.selectedAgents...)
}

// ActiveAgents returns the selected agents flying at the current tick.
func (s *Simulation) ActiveAgents() []*Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Agent(nil), s.activeAgents...)
}

// ActiveBlockers returns the blockers present at the current tick.
func (s *Simulation) ActiveBlockers() []*Blocker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Blocker(nil), s.activeBlockers...)
}

// FlyingAgentsAt is an index lookup that ignores the selection. The tick
// indices are never written after NewSimulation, so no lock is taken.
func (s *Simulation) FlyingAgentsAt(t int) []*Agent {
	return append([]*Agent(nil), s.flyingAgentsPerTick[t]...)
}

// ActiveBlockersAt is an index lookup for tick t. Lock-free like
// FlyingAgentsAt.
func (s *Simulation) ActiveBlockersAt(t int) []*Blocker {
	return append([]*Blocker(nil), s.activeBlockersPerTick[t]...)
}

// Agent returns the agent with the given ID. agentByID is immutable after
// construction.
func (s *Simulation) Agent(id string) (*Agent, bool) {
	a, ok := s.agentByID[id]
	return a, ok
}

// Agents returns every agent sorted by first flying tick.
func (s *Simulation) Agents() []*Agent { return append([]*Agent(nil), s.agents...) }

// Owners returns the owners in snapshot order.
func (s *Simulation) Owners() []*Owner { return append([]*Owner(nil), s.owners...) }

// Blockers returns the blockers in snapshot order.
func (s *Simulation) Blockers() []*Blocker { return append([]*Blocker(nil), s.blockers...) }

// IndexedTicks returns the number of ticks with at least one flying agent.
func (s *Simulation) IndexedTicks() int { return len(s.flyingAgentsPerTick) }
