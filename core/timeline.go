// core/timeline.go
package core

import "time"

// Timeline summarises the selected agents over the whole horizon. All four
// series have length MaxTick+1 and are indexed by tick.
type Timeline struct {
	Agents            []int `json:"agents"`
	Reallocations     []int `json:"reallocations"`
	Violations        []int `json:"violations"`
	BlockerViolations []int `json:"blocker_violations"`
	// MaxTick is the last tick any selected agent flies at, -1 when nothing
	// is selected.
	MaxTick int `json:"max_tick"`
}

func emptyTimeline() Timeline {
	return Timeline{
		Agents:            []int{},
		Reallocations:     []int{},
		Violations:        []int{},
		BlockerViolations: []int{},
		MaxTick:           -1,
	}
}

// Len returns the number of ticks covered.
func (t Timeline) Len() int { return len(t.Agents) }

func (t Timeline) clone() Timeline {
	return Timeline{
		Agents:            append([]int{}, t.Agents...),
		Reallocations:     append([]int{}, t.Reallocations...),
		Violations:        append([]int{}, t.Violations...),
		BlockerViolations: append([]int{}, t.BlockerViolations...),
		MaxTick:           t.MaxTick,
	}
}

// TimelineEvent is a flight event of one selected agent.
type TimelineEvent struct {
	AgentID string
	Event   FlightEvent
}

// buildTimeline is a full rebuild over the selected agents. Sibling series
// entries beyond MaxTick are dropped.
func buildTimeline(selected []*Agent) (Timeline, map[int][]TimelineEvent) {
	maxTick := -1
	for _, a := range selected {
		if last, ok := a.VeryLastTick(); ok && last > maxTick {
			maxTick = last
		}
	}
	if maxTick < 0 {
		return emptyTimeline(), map[int][]TimelineEvent{}
	}

	tl := Timeline{
		Agents:            make([]int, maxTick+1),
		Reallocations:     make([]int, maxTick+1),
		Violations:        make([]int, maxTick+1),
		BlockerViolations: make([]int, maxTick+1),
		MaxTick:           maxTick,
	}
	bucket := func(series []int, ticks []int) {
		for _, t := range ticks {
			if t >= 0 && t <= maxTick {
				series[t]++
			}
		}
	}

	evs := make(map[int][]TimelineEvent)
	for _, a := range selected {
		bucket(tl.Agents, a.FlyingTicks())
		bucket(tl.Reallocations, a.ReallocationTicks())
		bucket(tl.Violations, a.ViolationTicks())
		bucket(tl.BlockerViolations, a.BlockerViolationTicks())
		for _, ev := range a.Events() {
			evs[ev.Tick] = append(evs[ev.Tick], TimelineEvent{AgentID: a.ID, Event: ev})
		}
	}
	return tl, evs
}

func (s *Simulation) updateTimeline() {
	start := time.Now()
	s.timeline, s.timelineEvents = buildTimeline(s.selectedAgents)
	if s.metrics != nil {
		s.metrics.ObserveTimelineRebuild(time.Since(start))
	}
}

// Timeline returns a copy of the current timeline series.
func (s *Simulation) Timeline() Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.clone()
}

// MaxTick returns the last tick covered by the timeline.
func (s *Simulation) MaxTick() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline.MaxTick
}

// TimelineEvents returns the selected agents' flight events bucketed by tick.
func (s *Simulation) TimelineEvents() map[int][]TimelineEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]TimelineEvent, len(s.timelineEvents))
	for t, evs := range s.timelineEvents {
		out[t] = append([]TimelineEvent(nil), evs...)
	}
	return out
}
