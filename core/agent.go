// core/agent.go
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/airspace-playback/model"
)

// AgentKind discriminates the agent variants.
type AgentKind int

const (
	AgentKindPath AgentKind = iota + 1
	AgentKindSpace
)

func (k AgentKind) String() string {
	switch k {
	case AgentKindPath:
		return "path"
	case AgentKindSpace:
		return "space"
	default:
		return "unknown"
	}
}

// ParseAgentKind maps the wire agent_type discriminator.
func ParseAgentKind(s string) (AgentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "path":
		return AgentKindPath, nil
	case "space":
		return AgentKindSpace, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAgentType, s)
	}
}

// PathAgent holds the variant data of an agent flying along paths.
type PathAgent struct {
	Speed      int
	NearRadius int
	Battery    int
	TimeInAir  *int

	// Paths are the legs of the journey in order.
	Paths        []*model.Path
	CombinedPath *model.Path
	Branches     []Branch
}

// SpaceAgent holds the variant data of an agent reserving spaces.
type SpaceAgent struct {
	Spaces []*model.Space
	// CombinedSpace lists, per tick, every reservation covering it.
	CombinedSpace map[int][]*model.Space
	Blocks        []Block
}

// Agent is a tagged variant over PathAgent and SpaceAgent. Exactly one of
// Path and Space is set, as indicated by Kind.
//
// Agents are built once per snapshot and are read-only afterwards.
type Agent struct {
	ID    string
	Name  string
	Kind  AgentKind
	Owner *Owner
	Color string

	Utility             float64
	NonCollidingUtility float64
	// Statistics is nil when the snapshot carried none for this agent.
	Statistics *model.AgentStatistics

	Path  *PathAgent
	Space *SpaceAgent

	flyingTicks           []int
	tickSet               map[int]struct{}
	reallocationTicks     []int
	violationTicks        []int
	blockerViolationTicks []int
}

func newAgent(id string, kind AgentKind, owner *Owner, stats *model.AgentStatistics) *Agent {
	a := &Agent{
		ID:         id,
		Name:       id,
		Kind:       kind,
		Owner:      owner,
		Statistics: stats,
	}
	if owner != nil {
		a.Name = owner.Name + "-" + id
		a.Color = owner.Color
	}
	if stats != nil {
		a.Utility = stats.Value
		a.NonCollidingUtility = stats.NonCollidingValue
	}
	return a
}

// NewPathAgent builds a path agent and derives its tick data.
func NewPathAgent(id string, owner *Owner, stats *model.AgentStatistics, pa PathAgent) *Agent {
	a := newAgent(id, AgentKindPath, owner, stats)
	pa.CombinedPath = model.Join(pa.Paths...)
	if pa.TimeInAir == nil && stats != nil {
		pa.TimeInAir = stats.TimeInAir
	}
	a.Path = &pa
	a.derive()
	return a
}

// NewSpaceAgent builds a space agent and derives its tick data.
func NewSpaceAgent(id string, owner *Owner, stats *model.AgentStatistics, sa SpaceAgent) *Agent {
	a := newAgent(id, AgentKindSpace, owner, stats)
	sa.CombinedSpace = make(map[int][]*model.Space)
	for _, sp := range sa.Spaces {
		for t := sp.Min.T; t <= sp.Max.T; t++ {
			sa.CombinedSpace[t] = append(sa.CombinedSpace[t], sp)
		}
	}
	a.Space = &sa
	a.derive()
	return a
}

// derive precomputes the tick lists served by the accessors.
func (a *Agent) derive() {
	var reallocs []int
	switch a.Kind {
	case AgentKindPath:
		a.flyingTicks = a.Path.CombinedPath.Ticks()
		for _, b := range a.Path.Branches {
			if b.Reason == ReasonReallocation {
				reallocs = append(reallocs, b.Tick)
			}
		}
	case AgentKindSpace:
		a.flyingTicks = make([]int, 0, len(a.Space.CombinedSpace))
		for t := range a.Space.CombinedSpace {
			a.flyingTicks = append(a.flyingTicks, t)
		}
		sort.Ints(a.flyingTicks)
		for _, b := range a.Space.Blocks {
			if b.Reason == ReasonReallocation {
				reallocs = append(reallocs, b.Tick)
			}
		}
	}

	a.tickSet = make(map[int]struct{}, len(a.flyingTicks))
	for _, t := range a.flyingTicks {
		a.tickSet[t] = struct{}{}
	}
	a.reallocationTicks = uniqueSorted(reallocs)

	if a.Statistics != nil && a.Statistics.Violations != nil {
		a.violationTicks = ticksOf(a.Statistics.Violations.Violations)
		a.blockerViolationTicks = ticksOf(a.Statistics.Violations.BlockerViolations)
	}
}

func ticksOf(m map[string][]model.Coordinate4D) []int {
	var ticks []int
	for _, coords := range m {
		for _, c := range coords {
			ticks = append(ticks, c.T)
		}
	}
	return uniqueSorted(ticks)
}

func uniqueSorted(ticks []int) []int {
	if len(ticks) == 0 {
		return nil
	}
	sort.Ints(ticks)
	out := ticks[:1]
	for _, t := range ticks[1:] {
		if t != out[len(out)-1] {
			out = append(out, t)
		}
	}
	return out
}

// FlyingTicks returns the ascending ticks at which the agent is present.
// The returned slice must not be modified.
func (a *Agent) FlyingTicks() []int { return a.flyingTicks }

// ReallocationTicks returns the deduplicated ticks of reallocations.
func (a *Agent) ReallocationTicks() []int { return a.reallocationTicks }

// ViolationTicks returns the deduplicated ticks at which the agent violated
// another agent's airspace.
func (a *Agent) ViolationTicks() []int { return a.violationTicks }

// BlockerViolationTicks returns the deduplicated ticks at which the agent
// violated a blocker.
func (a *Agent) BlockerViolationTicks() []int { return a.blockerViolationTicks }

// IsActiveAtTick reports whether t is one of the agent's flying ticks.
func (a *Agent) IsActiveAtTick(t int) bool {
	_, ok := a.tickSet[t]
	return ok
}

// VeryFirstTick returns the first flying tick, ok=false if there is none.
func (a *Agent) VeryFirstTick() (int, bool) {
	if len(a.flyingTicks) == 0 {
		return 0, false
	}
	return a.flyingTicks[0], true
}

// VeryLastTick returns the last flying tick, ok=false if there is none.
func (a *Agent) VeryLastTick() (int, bool) {
	if len(a.flyingTicks) == 0 {
		return 0, false
	}
	return a.flyingTicks[len(a.flyingTicks)-1], true
}

// SegmentsStartEnd returns [first, last] tick pairs, one per path leg or
// space reservation.
func (a *Agent) SegmentsStartEnd() [][2]int {
	var out [][2]int
	switch a.Kind {
	case AgentKindPath:
		for _, p := range a.Path.Paths {
			first, ok := p.FirstTick()
			if !ok {
				continue
			}
			last, _ := p.LastTick()
			out = append(out, [2]int{first, last})
		}
	case AgentKindSpace:
		for _, sp := range a.Space.Spaces {
			out = append(out, [2]int{sp.Min.T, sp.Max.T})
		}
	}
	return out
}

// LocationAtTick returns where the agent is at tick t. Space agents report
// the origin of the first reservation active at t.
func (a *Agent) LocationAtTick(t int) (model.Point, bool) {
	if !a.IsActiveAtTick(t) {
		return model.Point{}, false
	}
	switch a.Kind {
	case AgentKindPath:
		c, ok := a.Path.CombinedPath.At(t)
		if !ok {
			return model.Point{}, false
		}
		return c.Point(), true
	case AgentKindSpace:
		spaces := a.Space.CombinedSpace[t]
		if len(spaces) == 0 {
			return model.Point{}, false
		}
		return spaces[0].Origin(), true
	}
	return model.Point{}, false
}

// SpacesAtTick returns the reservations of a space agent covering t.
func (a *Agent) SpacesAtTick(t int) []*model.Space {
	if a.Kind != AgentKindSpace {
		return nil
	}
	return a.Space.CombinedSpace[t]
}

// Overlay returns the parts of every branch path that leave the agent's
// combined path, in branch order. Space agents have no overlay.
func (a *Agent) Overlay() []*model.Path {
	if a.Kind != AgentKindPath {
		return nil
	}
	var out []*model.Path
	for _, b := range a.Path.Branches {
		for _, p := range b.Paths {
			segs, err := model.Subtract(p, a.Path.CombinedPath)
			if err != nil {
				continue
			}
			out = append(out, segs...)
		}
	}
	return out
}

// OwnerID returns the owning owner's ID or "".
func (a *Agent) OwnerID() string {
	if a.Owner == nil {
		return ""
	}
	return a.Owner.ID
}
