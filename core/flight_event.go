// core/flight_event.go
package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/airspace-playback/model"
)

// FlightEventKind classifies a flight event.
type FlightEventKind int

const (
	EventTakeOff FlightEventKind = iota + 1
	EventArrival
	EventReservationStart
	EventReservationEnd
	EventFirstAllocation
	EventReallocation
	EventFailedAllocation
)

func (k FlightEventKind) String() string {
	switch k {
	case EventTakeOff:
		return "Take Off"
	case EventArrival:
		return "Arrival"
	case EventReservationStart:
		return "Reservation Start"
	case EventReservationEnd:
		return "Reservation End"
	case EventFirstAllocation:
		return "First Allocation"
	case EventReallocation:
		return "Reallocation"
	case EventFailedAllocation:
		return "Failed Allocation"
	default:
		return "Unknown"
	}
}

// Severity is the display category of the event.
func (k FlightEventKind) Severity() string {
	switch k {
	case EventArrival, EventReservationEnd:
		return "success"
	case EventReallocation:
		return "warning"
	case EventFailedAllocation:
		return "error"
	default:
		return "default"
	}
}

// FlightEvent is one entry of an agent's lifetime log.
type FlightEvent struct {
	Kind        FlightEventKind
	Tick        int
	Location    *model.Coordinate3D
	Explanation string
	// LineDashed marks events that happen while the agent is not flying.
	LineDashed bool
}

// Title is the human readable event name.
func (e FlightEvent) Title() string { return e.Kind.String() }

// Time renders the tick for display.
func (e FlightEvent) Time() string { return fmt.Sprintf("Tick: %d", e.Tick) }

func allocationEventKind(r AllocationReason) (FlightEventKind, bool) {
	switch r {
	case ReasonFirstAllocation:
		return EventFirstAllocation, true
	case ReasonReallocation:
		return EventReallocation, true
	case ReasonAllocationFailed:
		return EventFailedAllocation, true
	default:
		return 0, false
	}
}

// sortFlightEvents orders by tick; at equal ticks a take-off comes after
// everything else.
func sortFlightEvents(events []FlightEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Tick != events[j].Tick {
			return events[i].Tick < events[j].Tick
		}
		return events[i].Kind != EventTakeOff && events[j].Kind == EventTakeOff
	})
}

// Events returns the agent's lifetime events in display order.
func (a *Agent) Events() []FlightEvent {
	switch a.Kind {
	case AgentKindPath:
		return a.pathEvents()
	case AgentKindSpace:
		return a.spaceEvents()
	}
	return nil
}

func (a *Agent) pathEvents() []FlightEvent {
	var events []FlightEvent
	for _, p := range a.Path.Paths {
		first, ok := p.FirstTick()
		if !ok {
			continue
		}
		last, _ := p.LastTick()
		firstLoc, _ := p.FirstLocation()
		lastLoc, _ := p.LastLocation()
		events = append(events,
			FlightEvent{Kind: EventTakeOff, Tick: first, Location: &firstLoc},
			FlightEvent{Kind: EventArrival, Tick: last, Location: &lastLoc},
		)
	}
	for _, b := range a.Path.Branches {
		kind, ok := allocationEventKind(b.Reason)
		if !ok {
			continue
		}
		ev := FlightEvent{Kind: kind, Tick: b.Tick, Explanation: b.Explanation}
		if len(b.Paths) > 0 {
			if loc, ok := b.Paths[0].FirstLocation(); ok {
				ev.Location = &loc
			}
		}
		events = append(events, ev)
	}
	sortFlightEvents(events)

	flying := false
	for i := range events {
		switch events[i].Kind {
		case EventTakeOff:
			flying = true
		case EventArrival:
			flying = false
		}
		events[i].LineDashed = !flying
	}

	if n := len(a.Path.Branches); n > 0 && a.Path.Branches[n-1].Reason == ReasonAllocationFailed {
		cutoff := a.Path.Branches[n-1].Tick
		kept := events[:0]
		for _, ev := range events {
			if ev.Tick < cutoff || ev.Kind == EventFailedAllocation {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	return events
}

func (a *Agent) spaceEvents() []FlightEvent {
	var events []FlightEvent
	for _, sp := range a.Space.Spaces {
		origin := sp.Min.Spatial()
		events = append(events,
			FlightEvent{Kind: EventReservationStart, Tick: sp.Min.T, Location: &origin},
			FlightEvent{Kind: EventReservationEnd, Tick: sp.Max.T, Location: &origin},
		)
	}
	for _, b := range a.Space.Blocks {
		kind, ok := allocationEventKind(b.Reason)
		if !ok {
			continue
		}
		ev := FlightEvent{Kind: kind, Tick: b.Tick, Explanation: b.Explanation}
		if len(b.Spaces) > 0 {
			loc := b.Spaces[0].Min.Spatial()
			ev.Location = &loc
		}
		events = append(events, ev)
	}
	sortFlightEvents(events)

	reserved := false
	for i := range events {
		if events[i].Kind == EventReservationStart {
			reserved = true
		}
		events[i].LineDashed = !reserved
		if events[i].Kind == EventReservationEnd {
			reserved = false
		}
	}
	return events
}
